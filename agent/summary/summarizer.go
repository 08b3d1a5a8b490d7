package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/voca-labs/voca/agent/contract"
	customerx "github.com/voca-labs/voca/customer"
)

type summaryLLMOutput struct {
	Sentiment         string `json:"sentiment"`
	OutcomeText       string `json:"outcome_text"`
	ResolvedComplaint bool   `json:"resolved_complaint"`
}

// Summarizer derives the session wrap-up from the full transcript. A model
// failure degrades to a keyword heuristic instead of failing the close: the
// call already happened and its outcome must be recorded.
type Summarizer struct {
	runner compose.Runnable[map[string]any, summaryLLMOutput]
}

func NewSummarizer(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (*Summarizer, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: summarizer system prompt", contractx.ErrPromptMissing)
	}

	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[summaryLLMOutput](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, summaryLLMOutput]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add summary prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add summary model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add summary parser node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add summary edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add summary edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add summary edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add summary edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("summarizer.graph"))
	if err != nil {
		return nil, fmt.Errorf("%w: compile summarizer graph: %v", contractx.ErrModelInvoke, err)
	}

	return &Summarizer{runner: runner}, nil
}

func (s *Summarizer) Summarize(ctx context.Context, turns []contractx.Turn) (contractx.Summary, error) {
	if len(turns) == 0 {
		return contractx.Summary{
			Sentiment:   customerx.SentimentNeutral,
			OutcomeText: "Call ended before any conversation took place.",
		}, nil
	}

	payload := map[string]any{
		"transcript": contractx.RenderTranscript(turns),
	}
	input, err := sonic.Marshal(payload)
	if err != nil {
		return contractx.Summary{}, fmt.Errorf("%w: marshal summary payload: %v", contractx.ErrValidation, err)
	}

	out, err := s.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		log.Warn().Err(err).Msg("summarizer model failed, falling back to keyword heuristic")
		return HeuristicSummary(turns), nil
	}

	sentiment, ok := parseSentiment(out.Sentiment)
	if !ok {
		log.Warn().Str("sentiment", out.Sentiment).Msg("summarizer returned unknown sentiment, falling back to keyword heuristic")
		return HeuristicSummary(turns), nil
	}

	outcome := strings.TrimSpace(out.OutcomeText)
	if outcome == "" {
		outcome = "Follow-up call completed."
	}

	return contractx.Summary{
		Sentiment:         sentiment,
		OutcomeText:       outcome,
		ResolvedComplaint: out.ResolvedComplaint,
	}, nil
}

func parseSentiment(raw string) (customerx.Sentiment, bool) {
	switch customerx.Sentiment(strings.ToLower(strings.TrimSpace(raw))) {
	case customerx.SentimentPositive:
		return customerx.SentimentPositive, true
	case customerx.SentimentNeutral:
		return customerx.SentimentNeutral, true
	case customerx.SentimentNegative:
		return customerx.SentimentNegative, true
	}
	return "", false
}

var (
	negativeWords = []string{"unhappy", "bad", "problem", "issue"}
	positiveWords = []string{"happy", "good", "satisfied"}
)

// HeuristicSummary scores customer turns against a small keyword lexicon.
// Negative hits win over positive ones so complaints are never recorded as
// a positive call.
func HeuristicSummary(turns []contractx.Turn) contractx.Summary {
	sentiment := customerx.SentimentNeutral
	var text strings.Builder
	for _, t := range turns {
		if t.Speaker != contractx.SpeakerCustomer {
			continue
		}
		text.WriteString(strings.ToLower(t.Text))
		text.WriteString(" ")
	}
	spoken := text.String()

	for _, w := range positiveWords {
		if strings.Contains(spoken, w) {
			sentiment = customerx.SentimentPositive
			break
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(spoken, w) {
			sentiment = customerx.SentimentNegative
			break
		}
	}

	return contractx.Summary{
		Sentiment:   sentiment,
		OutcomeText: fmt.Sprintf("Follow-up call completed with %d turns on record.", len(turns)),
	}
}
