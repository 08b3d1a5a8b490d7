package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/voca-labs/voca/agent/contract"
)

// Phase is the call lifecycle position. Transitions only move forward:
// INIT -> GREETING -> ACTIVE -> CLOSING -> DONE.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseGreeting Phase = "greeting"
	PhaseActive   Phase = "active"
	PhaseClosing  Phase = "closing"
	PhaseDone     Phase = "done"
)

var phaseOrder = map[Phase]int{
	PhaseInit:     0,
	PhaseGreeting: 1,
	PhaseActive:   2,
	PhaseClosing:  3,
	PhaseDone:     4,
}

var (
	ErrNilSession        = errors.New("session is nil")
	ErrInvalidSession    = errors.New("session id is empty")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrTranscriptOrder   = errors.New("transcript out of chronological order")
)

// Session is the ephemeral per-call state. It references the customer by id
// only; record reads and writes always go through the store. The session
// owns its transcript exclusively and the transcript is append-only.
type Session struct {
	ID         string
	CustomerID string
	Phase      Phase

	Transcript []contractx.Turn

	// CustomerTurns counts received utterances, for the max-turn valve.
	CustomerTurns int
	// EmptyStreak counts consecutive empty/silent utterances.
	EmptyStreak int

	Summary *contractx.Summary

	StartedAt time.Time
	UpdatedAt time.Time
}

func New(id string, customerID string, now time.Time) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidSession
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is empty")
	}
	return &Session{
		ID:         id,
		CustomerID: customerID,
		Phase:      PhaseInit,
		StartedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}, nil
}

// Advance moves the session to the given phase. Going backwards or skipping
// DONE's terminality is refused.
func (s *Session) Advance(to Phase, now time.Time) error {
	if s == nil {
		return ErrNilSession
	}
	cur, ok := phaseOrder[s.Phase]
	if !ok {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidTransition, s.Phase)
	}
	next, ok := phaseOrder[to]
	if !ok {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidTransition, to)
	}
	if next <= cur {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, to)
	}
	s.Phase = to
	s.Touch(now)
	return nil
}

func (s *Session) Done() bool {
	return s != nil && s.Phase == PhaseDone
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// AppendAgent records an agent turn.
func (s *Session) AppendAgent(text string, now time.Time) {
	s.appendTurn(contractx.SpeakerAgent, text, now)
}

// AppendCustomer records a customer turn and updates the turn counters.
func (s *Session) AppendCustomer(text string, now time.Time) {
	s.appendTurn(contractx.SpeakerCustomer, text, now)
	s.CustomerTurns++
	if strings.TrimSpace(text) == "" {
		s.EmptyStreak++
	} else {
		s.EmptyStreak = 0
	}
}

func (s *Session) appendTurn(speaker contractx.Speaker, text string, now time.Time) {
	s.Transcript = append(s.Transcript, contractx.Turn{
		Speaker:   speaker,
		Text:      text,
		Timestamp: now.UTC(),
	})
	s.Touch(now)
}

// Render flattens the transcript for persistence and summarization.
func (s *Session) Render() string {
	return contractx.RenderTranscript(s.Transcript)
}

// Validate checks the replayability guarantee: timestamps never go
// backwards and every turn has a known speaker.
func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.ID) == "" {
		return ErrInvalidSession
	}
	var prev time.Time
	for i, t := range s.Transcript {
		if t.Speaker != contractx.SpeakerAgent && t.Speaker != contractx.SpeakerCustomer {
			return fmt.Errorf("turn %d has unknown speaker %q", i, t.Speaker)
		}
		if t.Timestamp.Before(prev) {
			return fmt.Errorf("%w: turn %d", ErrTranscriptOrder, i)
		}
		prev = t.Timestamp
	}
	return nil
}
