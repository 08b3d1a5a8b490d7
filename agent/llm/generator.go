package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/voca-labs/voca/agent/contract"
)

// Generator drives one conversation turn through two model passes: a tool
// planning pass where the model may request registry operations, and a
// structured finalize pass that yields the spoken reply. A turn enters the
// finalize pass directly when tool results are already attached, so the
// model gets at most one tool round per customer utterance.
type Generator struct {
	structuredRunner compose.Runnable[map[string]any, turnLLMOutput]
	toolRunner       compose.Runnable[map[string]any, *schema.Message]
	turnRunner       compose.Runnable[contractx.TurnRequest, contractx.TurnResponse]
	allowedTools     map[string]struct{}
}

type turnLLMOutput struct {
	Message string `json:"message"`
}

func NewGenerator(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools []*schema.ToolInfo,
) (*Generator, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: generator system prompt", contractx.ErrPromptMissing)
	}

	structuredRunner, err := compileStructuredGraph[turnLLMOutput](ctx, chatModel, systemPrompt, "generator.finalize_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile finalize graph: %v", contractx.ErrModelInvoke, err)
	}

	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
	}
	toolRunner, err := compileToolPlanningGraph(ctx, toolModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile tool planning graph: %v", contractx.ErrModelInvoke, err)
	}

	allowedTools := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			continue
		}
		allowedTools[t.Name] = struct{}{}
	}

	gen := &Generator{
		structuredRunner: structuredRunner,
		toolRunner:       toolRunner,
		allowedTools:     allowedTools,
	}

	turnRunner, err := compileTurnGraph(ctx, gen.runToolPlanning, gen.runFinalize)
	if err != nil {
		return nil, fmt.Errorf("%w: compile turn graph: %v", contractx.ErrModelInvoke, err)
	}
	gen.turnRunner = turnRunner

	return gen, nil
}

func (g *Generator) Respond(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
	return g.turnRunner.Invoke(ctx, req)
}

func (g *Generator) runToolPlanning(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
	payload := map[string]any{
		"mode":       "act",
		"utterance":  req.Utterance,
		"customer":   req.Customer,
		"transcript": contractx.RenderTranscript(req.Transcript),
	}
	input, err := sonic.Marshal(payload)
	if err != nil {
		return contractx.TurnResponse{}, fmt.Errorf("%w: marshal planning payload: %v", contractx.ErrValidation, err)
	}

	msg, err := g.toolRunner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.TurnResponse{}, fmt.Errorf("%w: tool planning invoke: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return contractx.TurnResponse{}, fmt.Errorf("%w: empty tool planning response", contractx.ErrSchemaViolation)
	}

	toolRequests, err := toToolRequests(msg.ToolCalls)
	if err != nil {
		return contractx.TurnResponse{}, err
	}

	if len(toolRequests) == 0 {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			return contractx.TurnResponse{}, fmt.Errorf("%w: planning produced neither reply nor tool requests", contractx.ErrSchemaViolation)
		}
		return contractx.TurnResponse{Message: extractMessage(content)}, nil
	}

	for _, tr := range toolRequests {
		if _, ok := g.allowedTools[tr.Tool]; !ok {
			return contractx.TurnResponse{}, fmt.Errorf("%w: tool=%s is not registered", contractx.ErrSchemaViolation, tr.Tool)
		}
	}

	return contractx.TurnResponse{ToolRequests: toolRequests}, nil
}

func (g *Generator) runFinalize(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
	payload := map[string]any{
		"mode":         "finalize",
		"utterance":    req.Utterance,
		"customer":     req.Customer,
		"transcript":   contractx.RenderTranscript(req.Transcript),
		"tool_results": req.ToolResults,
	}
	input, err := sonic.Marshal(payload)
	if err != nil {
		return contractx.TurnResponse{}, fmt.Errorf("%w: marshal finalize payload: %v", contractx.ErrValidation, err)
	}

	out, err := g.structuredRunner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.TurnResponse{}, fmt.Errorf("%w: finalize invoke: %v", contractx.ErrModelInvoke, err)
	}

	message := strings.TrimSpace(out.Message)
	if message == "" {
		return contractx.TurnResponse{}, fmt.Errorf("%w: finalize message is empty", contractx.ErrSchemaViolation)
	}

	return contractx.TurnResponse{Message: message}, nil
}

// extractMessage tolerates a planning pass that answers in the finalize
// JSON shape instead of plain text.
func extractMessage(content string) string {
	var out turnLLMOutput
	if err := sonic.UnmarshalString(content, &out); err == nil && strings.TrimSpace(out.Message) != "" {
		return strings.TrimSpace(out.Message)
	}
	return content
}

func toToolRequests(calls []schema.ToolCall) ([]contractx.ToolRequest, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	for _, call := range calls {
		tool := strings.TrimSpace(call.Function.Name)
		if tool == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := sonic.UnmarshalString(rawArgs, &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, tool, err)
			}
		}

		reqs = append(reqs, contractx.ToolRequest{
			Tool: tool,
			Args: args,
		})
	}
	return reqs, nil
}
