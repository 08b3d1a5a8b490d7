package contract

import (
	"fmt"
	"strings"
	"time"

	customerx "github.com/voca-labs/voca/customer"
)

type Speaker string

const (
	SpeakerAgent    Speaker = "agent"
	SpeakerCustomer Speaker = "customer"
)

// Turn is one transcript entry. Turns are append-only: once recorded they
// are never rewritten or reordered.
type Turn struct {
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RenderTranscript flattens turns into the "speaker: text" form fed to the
// model and appended to the customer record history.
func RenderTranscript(turns []Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Speaker, t.Text))
	}
	return strings.Join(lines, "\n")
}

// ToolRequest is a model-requested tool invocation. It is executed only
// after validation against the registry's declared schema.
type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult carries a tool outcome back into the same turn's reasoning.
// Error is a message for the model, not for the customer.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// TurnRequest is everything the generator sees for one turn: the utterance,
// the full transcript so far, a snapshot of the customer record, and (on the
// second phase of a turn) the results of the single tool round.
type TurnRequest struct {
	Utterance   string           `json:"utterance"`
	Transcript  []Turn           `json:"transcript"`
	Customer    customerx.Record `json:"customer"`
	ToolResults []ToolResult     `json:"tool_results,omitempty"`
}

// TurnResponse is either a user-facing reply or a batch of tool requests,
// never both.
type TurnResponse struct {
	Message      string        `json:"message"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"`
}

// Summary is the session outcome derived from the full transcript.
type Summary struct {
	Sentiment         customerx.Sentiment `json:"sentiment"`
	OutcomeText       string              `json:"outcome_text"`
	ResolvedComplaint bool                `json:"resolved_complaint"`
}
