package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/agent.txt
	agentRaw string

	//go:embed template/summarizer.txt
	summarizerRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Agent      string
	Summarizer string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Agent:      strings.TrimSpace(agentRaw),
		Summarizer: strings.TrimSpace(summarizerRaw),
	}
}
