package contract

import (
	"context"
	"io"
)

// Generator is the language-generation capability behind a turn. It may
// request tool invocations; the orchestrator runs at most one round before
// asking for the final reply.
type Generator interface {
	Respond(ctx context.Context, req TurnRequest) (TurnResponse, error)
}

// ToolExecutor validates and runs a single tool request.
type ToolExecutor interface {
	Execute(ctx context.Context, req ToolRequest) ToolResult
}

// Summarizer derives the session outcome in one holistic pass over the
// transcript.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []Turn) (Summary, error)
}

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}

// Synthesizer renders agent text as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
