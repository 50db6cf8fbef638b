package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/soyl-labs/voice-backend/internal/config"
)

// TranscriberClient calls the speech-to-text upstream over its REST API.
type TranscriberClient struct {
	cfg        config.SpeechConfig
	httpClient *http.Client
}

// NewTranscriberClient creates a transcription client bound to the configured
// upstream.
func NewTranscriberClient(cfg config.SpeechConfig) *TranscriberClient {
	return &TranscriberClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type transcriptionResult struct {
	Text string `json:"text"`
}

// Transcribe sends audio bytes for recognition and returns the raw
// transcript. The call runs to completion or timeout; there is no
// mid-flight cancellation path beyond ctx.
func (c *TranscriberClient) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if format == "" {
		format = "webm"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio payload: %w", err)
	}
	if err := writer.WriteField("model", c.cfg.ASRModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if c.cfg.ASRLanguage != "" {
		if err := writer.WriteField("language", c.cfg.ASRLanguage); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("transcription upstream returned %d: %s", resp.StatusCode, detail)
	}

	var result transcriptionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}

	return result.Text, nil
}
