package classifier

import "strings"

// Result is the termination verdict for one utterance.
type Result struct {
	Terminating bool
}

// defaultPhrases is the curated end-of-call phrase set. Matching is
// substring-based and case-insensitive, so "ok goodbye then" terminates.
// Ambiguous utterances must stay non-terminating: a false positive hangs up
// on the customer.
var defaultPhrases = []string{
	"goodbye",
	"bye",
	"end call",
	"end the call",
	"hang up",
	"that's all",
	"that is all",
	"that's everything",
	"no more",
	"nothing else",
	"we're done",
	"i have to go",
}

// Classifier detects intent to end the conversation. It is a pure function
// of the single utterance; consecutive-silence accounting lives with the
// orchestrator, which owns the session counters.
type Classifier struct {
	phrases []string
}

type Option func(*Classifier)

// WithPhrases adds extra termination phrases to the default set.
func WithPhrases(phrases ...string) Option {
	return func(c *Classifier) {
		for _, p := range phrases {
			p = strings.ToLower(strings.TrimSpace(p))
			if p != "" {
				c.phrases = append(c.phrases, p)
			}
		}
	}
}

func New(opts ...Option) *Classifier {
	c := &Classifier{
		phrases: append([]string(nil), defaultPhrases...),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Classify reports whether the utterance signals end-of-call intent.
// Deterministic: the same utterance always yields the same result.
func (c *Classifier) Classify(utterance string) Result {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	if lower == "" {
		return Result{}
	}
	for _, phrase := range c.phrases {
		if strings.Contains(lower, phrase) {
			return Result{Terminating: true}
		}
	}
	return Result{}
}
