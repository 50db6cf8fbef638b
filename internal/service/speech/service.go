package speech

import (
	"context"

	"github.com/soyl-labs/voice-backend/internal/config"
)

// Service bundles the transcription and synthesis upstream clients.
type Service struct {
	config      config.SpeechConfig
	transcriber *TranscriberClient
	synthesizer *SynthesizerClient
}

// NewService creates a speech service instance.
func NewService(cfg config.SpeechConfig) *Service {
	return &Service{
		config:      cfg,
		transcriber: NewTranscriberClient(cfg),
		synthesizer: NewSynthesizerClient(cfg),
	}
}

// TranscribeBuffer converts recorded audio bytes to text.
func (s *Service) TranscribeBuffer(ctx context.Context, audio []byte, format string) (string, error) {
	return s.transcriber.Transcribe(ctx, audio, format)
}

// SynthesizeToBuffer converts reply text to mp3 bytes.
func (s *Service) SynthesizeToBuffer(ctx context.Context, text string) ([]byte, error) {
	return s.synthesizer.Synthesize(ctx, text)
}
