package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/voca-labs/voca/agent/contract"
)

const (
	transcribeAttempts = 3
	transcribeBackoff  = 500 * time.Millisecond
)

// WhisperTranscriber converts caller audio to text through the OpenAI audio
// endpoint. Transient failures are retried with backoff; when all attempts
// are exhausted the caller degrades the turn (prompt for repeat) instead of
// dropping the call.
type WhisperTranscriber struct {
	client *openaisdk.Client
	model  openaisdk.AudioModel
}

var _ contractx.Transcriber = (*WhisperTranscriber)(nil)

func NewWhisperTranscriber(client *openaisdk.Client) (*WhisperTranscriber, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is required", contractx.ErrValidation)
	}
	return &WhisperTranscriber{
		client: client,
		model:  openaisdk.AudioModelWhisper1,
	}, nil
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	raw, err := io.ReadAll(audio)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}

	var lastErr error
	for attempt := 1; attempt <= transcribeAttempts; attempt++ {
		resp, err := t.client.Audio.Transcriptions.New(ctx, openaisdk.AudioTranscriptionNewParams{
			File:  openaisdk.File(bytes.NewReader(raw), "utterance.mp3", "audio/mpeg"),
			Model: t.model,
		})
		if err == nil {
			return strings.TrimSpace(resp.Text), nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("transcription attempt failed")

		if attempt < transcribeAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(transcribeBackoff * time.Duration(attempt)):
			}
		}
	}

	return "", fmt.Errorf("%w: transcribe after %d attempts: %v", contractx.ErrAdapterUnavailable, transcribeAttempts, lastErr)
}
