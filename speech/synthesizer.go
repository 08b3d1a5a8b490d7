package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/voca-labs/voca/agent/contract"
)

const (
	synthesizeAttempts = 3
	synthesizeBackoff  = 500 * time.Millisecond
)

// TTSClient is the voice rendering backend.
type TTSClient interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// VoiceSynthesizer renders agent lines as audio. On exhaustion the caller
// presents text only; synthesis never fails a conversation turn.
type VoiceSynthesizer struct {
	client TTSClient
}

var _ contractx.Synthesizer = (*VoiceSynthesizer)(nil)

func NewVoiceSynthesizer(client TTSClient) (*VoiceSynthesizer, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: tts client is required", contractx.ErrValidation)
	}
	return &VoiceSynthesizer{client: client}, nil
}

func (s *VoiceSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= synthesizeAttempts; attempt++ {
		audio, err := s.client.Synthesize(ctx, text)
		if err == nil {
			return audio, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("synthesis attempt failed")

		if attempt < synthesizeAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(synthesizeBackoff * time.Duration(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("%w: synthesize after %d attempts: %v", contractx.ErrAdapterUnavailable, synthesizeAttempts, lastErr)
}
