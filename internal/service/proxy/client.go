package proxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/soyl-labs/voice-backend/internal/config"
	"github.com/soyl-labs/voice-backend/internal/model/voice"
)

// Result is a successful external voice-service turn, with the audio already
// decoded from whatever base64 shape the service returned.
type Result struct {
	Text          string
	Transcription string
	Audio         []byte
}

type proxyResponse struct {
	Text          string `json:"text"`
	Audio         string `json:"audio"`
	Transcription string `json:"transcription"`
}

// Client forwards validated chat requests to the external voice service.
// This is the only external call with a cooperative cancellation path; the
// deadline aborts the request mid-flight.
type Client struct {
	cfg        config.ProxyConfig
	httpClient *http.Client
}

// NewClient creates a proxy client. Callers gate construction on
// cfg.Enabled.
func NewClient(cfg config.ProxyConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Forward sends the full request to the external service and decodes its
// audio. Any failure is a routing signal for the caller, never a client
// error.
func (c *Client) Forward(ctx context.Context, req *voice.ChatRequest) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode proxy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build proxy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("proxy request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("proxy returned %d: %s", resp.StatusCode, detail)
	}

	var decoded proxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode proxy response: %w", err)
	}

	audio, err := DecodeAudioPayload(decoded.Audio)
	if err != nil {
		return nil, fmt.Errorf("proxy audio unusable: %w", err)
	}

	return &Result{
		Text:          decoded.Text,
		Transcription: decoded.Transcription,
		Audio:         audio,
	}, nil
}

var dataURIPrefix = regexp.MustCompile(`^data:audio/[^;]+;base64,`)

// DecodeAudioPayload turns the service's audio field into raw bytes. The
// field may be plain base64 or a data URI, and may carry embedded
// whitespace. An empty decode counts as a failure.
func DecodeAudioPayload(payload string) ([]byte, error) {
	cleaned := strings.TrimSpace(payload)

	if loc := dataURIPrefix.FindStringIndex(cleaned); loc != nil {
		cleaned = cleaned[loc[1]:]
	} else if strings.HasPrefix(cleaned, "data:") {
		// Malformed data URI: salvage whatever follows the comma.
		if idx := strings.IndexByte(cleaned, ','); idx != -1 {
			cleaned = cleaned[idx+1:]
		}
	}

	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, cleaned)

	if cleaned == "" {
		return nil, fmt.Errorf("empty audio payload")
	}

	audio, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio decoded to zero bytes")
	}

	return audio, nil
}
