package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/soyl-labs/voice-backend/internal/cache"
	voicemodel "github.com/soyl-labs/voice-backend/internal/model/voice"
	"github.com/soyl-labs/voice-backend/internal/service/ai"
	"github.com/soyl-labs/voice-backend/internal/service/proxy"
)

// Client-safe failure copy. Operator logs carry the real causes.
const (
	msgMissingInput    = "Invalid request: audio data or text input is required"
	msgInvalidAudio    = "Invalid request: invalid audio format"
	msgAudioTooLarge   = "Audio file too large. Maximum size is 10MB"
	msgTranscribeFail  = "Failed to process audio. Please try again."
	msgUpstreamBusy    = "Service temporarily busy. Please try again shortly."
	msgReplyFail       = "I had trouble processing that. Please try again."
	msgSynthesisFailed = "Audio generation failed. Showing the reply as text only."
	msgEmptyReply      = "I apologize, but I could not generate a response."
)

// Transcriber converts recorded audio to text.
type Transcriber interface {
	TranscribeBuffer(ctx context.Context, audio []byte, format string) (string, error)
}

// ReplyGenerator produces the assistant reply for a user turn.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, history []voicemodel.HistoryEntry, userText string) (string, error)
}

// Synthesizer renders reply text to audio bytes.
type Synthesizer interface {
	SynthesizeToBuffer(ctx context.Context, text string) ([]byte, error)
}

// ProxyForwarder sends the whole turn to the external voice service.
type ProxyForwarder interface {
	Forward(ctx context.Context, req *voicemodel.ChatRequest) (*proxy.Result, error)
}

// Result is a completed chat turn. AudioToken references the cache entry;
// the result never carries audio bytes. Warning is set on partial success.
type Result struct {
	Text          string
	Transcription string
	AudioToken    string
	Warning       string
}

// Service runs the voice-chat pipeline: validate, then either one external
// proxy hop or the local transcribe → reply → synthesize stages. Exactly one
// fallback hop is permitted (proxy to local); nothing in the pipeline
// retries.
type Service struct {
	transcriber Transcriber
	replies     ReplyGenerator
	synthesizer Synthesizer
	proxy       ProxyForwarder
	audioCache  *cache.AudioCache
}

// NewService wires the pipeline. proxy may be nil when the external hop is
// not configured; transcriber and synthesizer may be nil when the speech
// upstream is not configured (text-only degraded mode).
func NewService(transcriber Transcriber, replies ReplyGenerator, synthesizer Synthesizer, proxyClient ProxyForwarder, audioCache *cache.AudioCache) *Service {
	return &Service{
		transcriber: transcriber,
		replies:     replies,
		synthesizer: synthesizer,
		proxy:       proxyClient,
		audioCache:  audioCache,
	}
}

// Chat executes one conversation turn. Errors are always *Error with a
// client-safe message.
func (s *Service) Chat(ctx context.Context, req *voicemodel.ChatRequest) (*Result, error) {
	hasAudio := strings.TrimSpace(req.Audio) != ""
	hasText := strings.TrimSpace(req.Text) != ""
	if !hasAudio && !hasText {
		return nil, newError(KindValidation, msgMissingInput, nil)
	}

	validated := &voicemodel.ChatRequest{
		Audio:               req.Audio,
		Text:                req.Text,
		ConversationHistory: FilterHistory(req.ConversationHistory),
	}

	// External proxy hop. Failure here is a routing decision, not an error:
	// log it and continue into the local pipeline.
	if s.proxy != nil {
		if result, ok := s.tryProxy(ctx, validated); ok {
			return result, nil
		}
	}

	return s.runLocalPipeline(ctx, validated, hasAudio)
}

// tryProxy returns (result, true) when the external service produced a
// usable turn, and (nil, false) to route into the local pipeline.
func (s *Service) tryProxy(ctx context.Context, req *voicemodel.ChatRequest) (*Result, bool) {
	proxied, err := s.proxy.Forward(ctx, req)
	if err != nil {
		log.Printf("[voice] proxy unavailable, continuing with local pipeline: %v", err)
		return nil, false
	}

	token := s.audioCache.Store(proxied.Audio, cache.DefaultTTL)
	log.Printf("[voice] proxied turn served, audio=%d bytes", len(proxied.Audio))

	return &Result{
		Text:          proxied.Text,
		Transcription: proxied.Transcription,
		AudioToken:    token,
	}, true
}

func (s *Service) runLocalPipeline(ctx context.Context, req *voicemodel.ChatRequest, hasAudio bool) (*Result, error) {
	transcription, err := s.transcribe(ctx, req, hasAudio)
	if err != nil {
		return nil, err
	}

	reply, err := s.generateReply(ctx, req.ConversationHistory, transcription)
	if err != nil {
		return nil, err
	}

	result := &Result{Text: reply, Transcription: transcription}

	audio := s.synthesize(ctx, reply)
	if audio == nil {
		// Partial success: the reply text stands even without audio.
		result.Warning = msgSynthesisFailed
		return result, nil
	}

	result.AudioToken = s.audioCache.Store(audio, cache.DefaultTTL)
	return result, nil
}

func (s *Service) transcribe(ctx context.Context, req *voicemodel.ChatRequest, hasAudio bool) (string, error) {
	if !hasAudio {
		return truncate(sanitizeText(req.Text), voicemodel.MaxMessageLength), nil
	}

	if !isValidBase64(req.Audio) {
		return "", newError(KindValidation, msgInvalidAudio, nil)
	}

	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		return "", newError(KindValidation, msgInvalidAudio, err)
	}
	if len(audio) > voicemodel.MaxAudioBytes {
		return "", newError(KindValidation, msgAudioTooLarge, nil)
	}

	if s.transcriber == nil {
		return "", newError(KindBusy, msgUpstreamBusy, errors.New("transcription upstream not configured"))
	}

	text, err := s.transcriber.TranscribeBuffer(ctx, audio, "webm")
	if err != nil {
		log.Printf("[voice] transcription failed: %v", err)
		return "", newError(KindTranscribe, msgTranscribeFail, err)
	}

	return truncate(sanitizeText(text), voicemodel.MaxMessageLength), nil
}

func (s *Service) generateReply(ctx context.Context, history []voicemodel.HistoryEntry, userText string) (string, error) {
	if s.replies == nil {
		return "", newError(KindBusy, msgUpstreamBusy, errors.New("reply upstream not configured"))
	}

	reply, err := s.replies.GenerateReply(ctx, history, userText)
	if err != nil {
		if errors.Is(err, ai.ErrUpstreamBusy) || errors.Is(err, ai.ErrBadCredentials) {
			return "", newError(KindBusy, msgUpstreamBusy, err)
		}
		return "", newError(KindReply, msgReplyFail, err)
	}

	reply = sanitizeText(reply)
	if reply == "" {
		reply = msgEmptyReply
	}
	return reply, nil
}

// synthesize returns nil on any failure; the caller degrades to text-only.
func (s *Service) synthesize(ctx context.Context, text string) []byte {
	if s.synthesizer == nil {
		log.Printf("[voice] synthesis upstream not configured, text-only reply")
		return nil
	}

	audio, err := s.synthesizer.SynthesizeToBuffer(ctx, text)
	if err != nil {
		log.Printf("[voice] synthesis failed: %v", err)
		return nil
	}
	if len(audio) == 0 {
		log.Printf("[voice] synthesis returned empty audio")
		return nil
	}
	return audio
}

// FilterHistory drops malformed entries (unknown role, oversized content)
// and keeps the most recent MaxHistoryEntries. Malformed entries are never a
// request error.
func FilterHistory(history []voicemodel.HistoryEntry) []voicemodel.HistoryEntry {
	filtered := make([]voicemodel.HistoryEntry, 0, len(history))
	for _, entry := range history {
		if entry.Role != voicemodel.RoleUser && entry.Role != voicemodel.RoleAssistant {
			continue
		}
		if len(entry.Content) > voicemodel.MaxMessageLength {
			continue
		}
		filtered = append(filtered, voicemodel.HistoryEntry{
			Role:    entry.Role,
			Content: sanitizeText(entry.Content),
		})
	}

	if len(filtered) > voicemodel.MaxHistoryEntries {
		filtered = filtered[len(filtered)-voicemodel.MaxHistoryEntries:]
	}
	return filtered
}

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

func isValidBase64(s string) bool {
	return base64Pattern.MatchString(s)
}

// sanitizeText strips null bytes and control characters and trims the ends.
func sanitizeText(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(cleaned)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
