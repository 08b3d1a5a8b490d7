package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/voca-labs/voca/agent/contract"
	customerx "github.com/voca-labs/voca/customer"
)

const (
	ToolGetCustomerInfo        = "get_customer_info"
	ToolUpdateCustomerInfo     = "update_customer_info"
	ToolAddComplaint           = "add_complaint"
	ToolGetConversationHistory = "get_conversation_history"
)

// UpdateOutput is the result payload of update_customer_info.
type UpdateOutput struct {
	CustomerID string `json:"customer_id"`
	Field      string `json:"field"`
	Value      string `json:"value"`
}

// ComplaintOutput is the result payload of add_complaint.
type ComplaintOutput struct {
	TicketID string `json:"ticket_id"`
}

// HistoryOutput is the result payload of get_conversation_history.
type HistoryOutput struct {
	Transcript string `json:"transcript"`
}

// Registry is the fixed set of operations the generator may request. One
// registry is built per session: get_conversation_history reads the live
// session transcript and never touches the store.
type Registry struct {
	store      customerx.Store
	transcript func() []contractx.Turn
}

func NewRegistry(store customerx.Store, transcript func() []contractx.Turn) (*Registry, error) {
	if store == nil {
		return nil, errors.New("customer store is required")
	}
	if transcript == nil {
		transcript = func() []contractx.Turn { return nil }
	}
	return &Registry{store: store, transcript: transcript}, nil
}

// Infos returns the declared tool contracts, for binding to the chat model.
func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolGetCustomerInfo,
			Desc: "Get the customer's record: order, payment, complaint and review fields.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"customer_id": {Type: schema.String, Desc: "Customer identifier", Required: true},
			}),
		},
		{
			Name: ToolUpdateCustomerInfo,
			Desc: "Set one mutable customer field: paid_status, payment_method, order_status, resolution_status, sentiment, review or last_contact. Identity fields cannot be changed.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"customer_id": {Type: schema.String, Desc: "Customer identifier", Required: true},
				"field":       {Type: schema.String, Desc: "Field name to set", Required: true},
				"value":       {Type: schema.String, Desc: "New value", Required: true},
			}),
		},
		{
			Name: ToolAddComplaint,
			Desc: "File a complaint for the customer. Returns the new ticket id and marks the complaint open.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"customer_id": {Type: schema.String, Desc: "Customer identifier", Required: true},
				"complaint":   {Type: schema.String, Desc: "Complaint text in the customer's words", Required: true},
			}),
		},
		{
			Name: ToolGetConversationHistory,
			Desc: "Get the transcript of the current call so far.",
		},
	}
}

// Known reports whether a tool name is registered.
func Known(name string) bool {
	switch name {
	case ToolGetCustomerInfo, ToolUpdateCustomerInfo, ToolAddComplaint, ToolGetConversationHistory:
		return true
	}
	return false
}

// Execute validates one request against its declared schema and runs it.
// Failures come back as ToolResult.Error for the model to reason about,
// never as text shown to the customer.
func (r *Registry) Execute(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult {
	name := strings.TrimSpace(req.Tool)
	result := contractx.ToolResult{Tool: name}

	switch name {
	case ToolGetCustomerInfo:
		id, err := requireString(req.Args, "customer_id")
		if err != nil {
			result.Error = err.Error()
			return result
		}
		rec, err := r.store.Get(ctx, id)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Result = rec

	case ToolUpdateCustomerInfo:
		id, err := requireString(req.Args, "customer_id")
		if err != nil {
			result.Error = err.Error()
			return result
		}
		field, err := requireString(req.Args, "field")
		if err != nil {
			result.Error = err.Error()
			return result
		}
		value, err := requireString(req.Args, "value")
		if err != nil {
			result.Error = err.Error()
			return result
		}
		if err := r.store.Update(ctx, id, field, value); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Result = UpdateOutput{CustomerID: id, Field: field, Value: value}

	case ToolAddComplaint:
		id, err := requireString(req.Args, "customer_id")
		if err != nil {
			result.Error = err.Error()
			return result
		}
		complaint, err := requireString(req.Args, "complaint")
		if err != nil {
			result.Error = err.Error()
			return result
		}
		ticketID, err := r.store.AddComplaint(ctx, id, complaint)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		log.Info().Str("customer_id", id).Str("ticket_id", ticketID).Msg("complaint filed")
		result.Result = ComplaintOutput{TicketID: ticketID}

	case ToolGetConversationHistory:
		result.Result = HistoryOutput{Transcript: contractx.RenderTranscript(r.transcript())}

	default:
		result.Error = fmt.Sprintf("%s: %s", contractx.ErrUnknownTool, name)
	}

	return result
}

// ExecuteAll runs one round of tool requests. An identical request repeated
// within the round executes once and the result is reused, so a single
// customer ask cannot file the same complaint twice in one turn.
func (r *Registry) ExecuteAll(ctx context.Context, reqs []contractx.ToolRequest) []contractx.ToolResult {
	results := make([]contractx.ToolResult, 0, len(reqs))
	seen := make(map[string]contractx.ToolResult, len(reqs))
	for _, req := range reqs {
		key := requestKey(req)
		if cached, ok := seen[key]; ok {
			results = append(results, cached)
			continue
		}
		res := r.Execute(ctx, req)
		seen[key] = res
		results = append(results, res)
	}
	return results
}

func requestKey(req contractx.ToolRequest) string {
	keys := make([]string, 0, len(req.Args))
	for k := range req.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Tool))
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, req.Args[k])
	}
	return b.String()
}

func requireString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	str, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", contractx.ErrValidation, key)
	}
	str = strings.TrimSpace(str)
	if str == "" {
		return "", fmt.Errorf("%w: %s is empty", contractx.ErrValidation, key)
	}
	return str, nil
}
