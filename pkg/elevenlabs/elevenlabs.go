package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	// Voice and model defaults match the production voice profile.
	DefaultVoiceID = "JBFqnCBsd6RMkjVDRZzb"
	defaultModelID = "eleven_multilingual_v2"
	defaultFormat  = "mp3_44100_128"

	maxResponseSizeBytes = 16 << 20
)

type Config struct {
	URL     string        `split_words:"true" default:"https://api.elevenlabs.io"`
	APIKey  string        `split_words:"true" required:"true"`
	VoiceID string        `split_words:"true" default:"JBFqnCBsd6RMkjVDRZzb"`
	Timeout time.Duration `split_words:"true" default:"15s"`
}

// Client speaks the ElevenLabs text-to-speech REST API.
type Client struct {
	baseURL    string
	apiKey     string
	voiceID    string
	httpClient *http.Client
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("elevenlabs url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid elevenlabs url: %w", err)
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("elevenlabs api key is required")
	}

	voiceID := strings.TrimSpace(cfg.VoiceID)
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		voiceID: voiceID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Synthesize renders text as mp3 audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}

	body, err := sonic.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: defaultModelID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesize request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", c.baseURL, c.voiceID, defaultFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build synthesize request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute synthesize request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read synthesize response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("elevenlabs http status=%d body=%s", resp.StatusCode, string(raw))
	}

	return raw, nil
}
