package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	classifierx "github.com/voca-labs/voca/agent/classifier"
	contractx "github.com/voca-labs/voca/agent/contract"
	sessionx "github.com/voca-labs/voca/agent/session"
	summaryx "github.com/voca-labs/voca/agent/summary"
	toolx "github.com/voca-labs/voca/agent/tool"
	customerx "github.com/voca-labs/voca/customer"
)

const (
	greetingTemplate = "Hello, this is Smith from RichDaddy Incorporation. How are you doing today, %s?"
	farewellLine     = "Thank you for your time. Have a great day!"
	apologyLine      = "I apologize, but I'm experiencing some technical difficulties. Thank you for your time, goodbye."
	repeatPromptLine = "I'm sorry, I didn't catch that. Could you please repeat?"
)

type Config struct {
	MaxTurns      int `envconfig:"MAX_TURNS" split_words:"true" default:"30"`
	MaxEmptyTurns int `envconfig:"MAX_EMPTY_TURNS" split_words:"true" default:"3"`
}

func (c Config) Validate() error {
	if c.MaxTurns <= 0 {
		return fmt.Errorf("%w: max turns must be positive", contractx.ErrValidation)
	}
	if c.MaxEmptyTurns <= 0 {
		return fmt.Errorf("%w: max empty turns must be positive", contractx.ErrValidation)
	}
	return nil
}

// ToolRunner executes one validated tool round.
type ToolRunner interface {
	ExecuteAll(ctx context.Context, reqs []contractx.ToolRequest) []contractx.ToolResult
}

// Deps are the collaborators one call session runs on. Clock is optional and
// defaults to time.Now.
type Deps struct {
	Store      customerx.Store
	Generator  contractx.Generator
	Summarizer contractx.Summarizer
	Classifier *classifierx.Classifier
	Tools      ToolRunner
	Clock      func() time.Time
}

// Orchestrator owns exactly one call session and drives it through the
// lifecycle INIT -> GREETING -> ACTIVE -> CLOSING -> DONE. All methods are
// turn-serial: mu serializes them, so a turn fully resolves, including its
// single tool round, before the next utterance or a hangup touches the
// session. A Hangup arriving mid-turn blocks until the turn's appends land.
type Orchestrator struct {
	cfg  Config
	deps Deps

	mu   sync.Mutex
	sess *sessionx.Session

	// lastRecord is the most recent good snapshot, so a transient store
	// failure degrades one refresh instead of the whole turn.
	lastRecord customerx.Record
}

func New(cfg Config, deps Deps, customerID string) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: store is required", contractx.ErrValidation)
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("%w: generator is required", contractx.ErrValidation)
	}
	if deps.Summarizer == nil {
		return nil, fmt.Errorf("%w: summarizer is required", contractx.ErrValidation)
	}
	if deps.Classifier == nil {
		deps.Classifier = classifierx.New()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	sess, err := sessionx.New(uuid.NewString(), customerID, deps.Clock())
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{cfg: cfg, deps: deps, sess: sess}
	if deps.Tools == nil {
		registry, err := toolx.NewRegistry(deps.Store, func() []contractx.Turn {
			return o.sess.Transcript
		})
		if err != nil {
			return nil, err
		}
		o.deps.Tools = registry
	}
	return o, nil
}

// Session exposes the underlying call state. Safe to inspect once the call
// is over; while a turn may still be in flight, use Done instead.
func (o *Orchestrator) Session() *sessionx.Session {
	return o.sess
}

func (o *Orchestrator) Done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess.Done()
}

// Start opens the call: loads the customer, speaks the greeting, and leaves
// the session in ACTIVE awaiting the first utterance.
func (o *Orchestrator) Start(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.Phase != sessionx.PhaseInit {
		return "", fmt.Errorf("%w: call already started in phase %s", sessionx.ErrInvalidTransition, o.sess.Phase)
	}

	rec, err := o.deps.Store.Get(ctx, o.sess.CustomerID)
	if err != nil {
		return "", fmt.Errorf("load customer %s: %w", o.sess.CustomerID, err)
	}
	o.lastRecord = rec

	now := o.deps.Clock()
	if err := o.sess.Advance(sessionx.PhaseGreeting, now); err != nil {
		return "", err
	}

	greeting := fmt.Sprintf(greetingTemplate, rec.Name)
	o.sess.AppendAgent(greeting, o.deps.Clock())

	if err := o.sess.Advance(sessionx.PhaseActive, o.deps.Clock()); err != nil {
		return "", err
	}

	log.Info().
		Str("session_id", o.sess.ID).
		Str("customer_id", o.sess.CustomerID).
		Msg("call started")

	return greeting, nil
}

// HandleUtterance runs one conversation turn and returns what the agent
// says next. When the turn ends the call, the returned text is the closing
// line and the session is DONE afterwards.
func (o *Orchestrator) HandleUtterance(ctx context.Context, utterance string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.Done() {
		return "", contractx.ErrSessionDone
	}
	if o.sess.Phase != sessionx.PhaseActive {
		return "", fmt.Errorf("%w: utterance in phase %s", sessionx.ErrInvalidTransition, o.sess.Phase)
	}

	o.sess.AppendCustomer(utterance, o.deps.Clock())

	if o.deps.Classifier.Classify(utterance).Terminating {
		return o.close(ctx, farewellLine)
	}
	if o.sess.EmptyStreak >= o.cfg.MaxEmptyTurns {
		log.Info().Str("session_id", o.sess.ID).Int("empty_streak", o.sess.EmptyStreak).Msg("closing call after silence")
		return o.close(ctx, farewellLine)
	}
	if o.sess.CustomerTurns >= o.cfg.MaxTurns {
		log.Info().Str("session_id", o.sess.ID).Int("turns", o.sess.CustomerTurns).Msg("closing call at turn limit")
		return o.close(ctx, farewellLine)
	}

	reply, err := o.runTurn(ctx, utterance)
	if err != nil {
		log.Error().Err(err).Str("session_id", o.sess.ID).Msg("turn failed, closing call")
		return o.close(ctx, apologyLine)
	}

	o.sess.AppendAgent(reply, o.deps.Clock())
	return reply, nil
}

// runTurn is the two-phase turn protocol: generate, execute at most one tool
// round, generate again with the results.
func (o *Orchestrator) runTurn(ctx context.Context, utterance string) (string, error) {
	rec, err := o.deps.Store.Get(ctx, o.sess.CustomerID)
	if err != nil {
		log.Warn().Err(err).Str("customer_id", o.sess.CustomerID).Msg("snapshot refresh failed, using last known record")
		rec = o.lastRecord
	} else {
		o.lastRecord = rec
	}

	req := contractx.TurnRequest{
		Utterance:  utterance,
		Transcript: o.sess.Transcript,
		Customer:   rec,
	}

	resp, err := o.deps.Generator.Respond(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.ToolRequests) > 0 {
		results := o.deps.Tools.ExecuteAll(ctx, resp.ToolRequests)
		for _, res := range results {
			if res.Error != "" {
				log.Warn().
					Str("session_id", o.sess.ID).
					Str("tool", res.Tool).
					Str("error", res.Error).
					Msg("tool call failed")
			}
		}

		req.ToolResults = results
		resp, err = o.deps.Generator.Respond(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.ToolRequests) > 0 {
			return "", fmt.Errorf("%w: tool requests after the turn's tool round", contractx.ErrSchemaViolation)
		}
	}

	reply := strings.TrimSpace(resp.Message)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", contractx.ErrSchemaViolation)
	}
	return reply, nil
}

// PromptRepeat records and returns the degraded-turn line spoken after an
// unintelligible utterance. No generation and no tool round happen; the
// transcript still carries what the agent said.
func (o *Orchestrator) PromptRepeat() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.Done() {
		return "", contractx.ErrSessionDone
	}
	if o.sess.Phase != sessionx.PhaseActive {
		return "", fmt.Errorf("%w: repeat prompt in phase %s", sessionx.ErrInvalidTransition, o.sess.Phase)
	}

	o.sess.AppendAgent(repeatPromptLine, o.deps.Clock())
	return repeatPromptLine, nil
}

// Close wraps up the call politely: closing line, summary, persistence.
func (o *Orchestrator) Close(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.Done() {
		return "", contractx.ErrSessionDone
	}
	return o.close(ctx, farewellLine)
}

// Hangup forces CLOSING -> DONE with whatever transcript exists. No closing
// line is rendered; the summary and record writes still happen. A hangup
// during a turn waits for that turn to finish first.
func (o *Orchestrator) Hangup(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess.Done() {
		return nil
	}
	_, err := o.close(ctx, "")
	return err
}

func (o *Orchestrator) close(ctx context.Context, closingLine string) (string, error) {
	now := o.deps.Clock()
	if o.sess.Phase != sessionx.PhaseClosing {
		if err := o.sess.Advance(sessionx.PhaseClosing, now); err != nil {
			return "", err
		}
	}

	if closingLine != "" {
		o.sess.AppendAgent(closingLine, o.deps.Clock())
	}

	sum, err := o.deps.Summarizer.Summarize(ctx, o.sess.Transcript)
	if err != nil {
		log.Error().Err(err).Str("session_id", o.sess.ID).Msg("summarize failed, using keyword heuristic")
		sum = summaryx.HeuristicSummary(o.sess.Transcript)
	}
	o.sess.Summary = &sum

	o.persist(ctx, sum)

	if err := o.sess.Advance(sessionx.PhaseDone, o.deps.Clock()); err != nil {
		return "", err
	}

	log.Info().
		Str("session_id", o.sess.ID).
		Str("customer_id", o.sess.CustomerID).
		Str("sentiment", string(sum.Sentiment)).
		Bool("resolved_complaint", sum.ResolvedComplaint).
		Msg("call closed")

	return closingLine, nil
}

// persist is best effort: a write failure is logged and never blocks the
// session from reaching DONE.
func (o *Orchestrator) persist(ctx context.Context, sum contractx.Summary) {
	id := o.sess.CustomerID

	if err := o.deps.Store.Update(ctx, id, customerx.FieldSentiment, string(sum.Sentiment)); err != nil {
		log.Error().Err(err).Str("customer_id", id).Msg("persist sentiment failed")
	}
	if sum.OutcomeText != "" {
		if err := o.deps.Store.Update(ctx, id, customerx.FieldReview, sum.OutcomeText); err != nil {
			log.Error().Err(err).Str("customer_id", id).Msg("persist review failed")
		}
	}
	if err := o.deps.Store.Update(ctx, id, customerx.FieldLastContact, o.deps.Clock().UTC().Format(time.RFC3339)); err != nil {
		log.Error().Err(err).Str("customer_id", id).Msg("persist last contact failed")
	}

	if sum.ResolvedComplaint {
		rec, err := o.deps.Store.Get(ctx, id)
		switch {
		case err != nil:
			log.Error().Err(err).Str("customer_id", id).Msg("load record for resolution failed")
		case rec.Complaint != "" && rec.Resolution != customerx.ResolutionResolved:
			if err := o.deps.Store.Update(ctx, id, customerx.FieldResolution, string(customerx.ResolutionResolved)); err != nil {
				log.Error().Err(err).Str("customer_id", id).Msg("persist resolution failed")
			}
		}
	}

	if transcript := o.sess.Render(); transcript != "" {
		if err := o.deps.Store.AppendConversation(ctx, id, transcript); err != nil {
			log.Error().Err(err).Str("customer_id", id).Msg("persist transcript failed")
		}
	}
}
