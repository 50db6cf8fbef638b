package voice

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soyl-labs/voice-backend/internal/analytics"
	"github.com/soyl-labs/voice-backend/internal/cache"
	voicemodel "github.com/soyl-labs/voice-backend/internal/model/voice"
	"github.com/soyl-labs/voice-backend/internal/ratelimit"
	voicesvc "github.com/soyl-labs/voice-backend/internal/service/voice"
	"github.com/soyl-labs/voice-backend/pkg/utils"
)

// ChatService abstracts the pipeline so handler tests can fake it.
type ChatService interface {
	Chat(ctx context.Context, req *voicemodel.ChatRequest) (*voicesvc.Result, error)
}

// Synthesizer serves the on-demand text path of the audio endpoint.
type Synthesizer interface {
	SynthesizeToBuffer(ctx context.Context, text string) ([]byte, error)
}

// Handler exposes the voice-chat HTTP surface.
type Handler struct {
	chatSvc     ChatService
	synthesizer Synthesizer
	audioCache  *cache.AudioCache
	limiter     *ratelimit.Limiter
	dispatcher  *analytics.Dispatcher
}

// New creates the voice handler. synthesizer may be nil when the speech
// upstream is not configured; the on-demand audio path then reports
// unavailable.
func New(chatSvc ChatService, synthesizer Synthesizer, audioCache *cache.AudioCache, limiter *ratelimit.Limiter, dispatcher *analytics.Dispatcher) *Handler {
	return &Handler{
		chatSvc:     chatSvc,
		synthesizer: synthesizer,
		audioCache:  audioCache,
		limiter:     limiter,
		dispatcher:  dispatcher,
	}
}

// RegisterRoutes mounts the voice endpoints. ws may be nil when the realtime
// channel is not wanted.
func (h *Handler) RegisterRoutes(r chi.Router, ws *WebSocketHandler) {
	r.Route("/voice", func(vr chi.Router) {
		vr.Post("/chat", h.handleChat)
		vr.Get("/audio", h.handleAudio)
		if ws != nil {
			ws.RegisterWebSocketRoutes(vr)
		}
	})
}

// handleChat runs one conversation turn: admission check, pipeline, taxonomy
// mapping. Rate-limit headers go out on success and on 429.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	res := h.limiter.Check(ip)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.limiter.Limit()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))

	if !res.Allowed {
		retryAfter := int(time.Until(res.ResetAt).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.dispatch("turn_rejected", ip, "rate limited")
		utils.RespondError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		return
	}

	var req voicemodel.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.chatSvc.Chat(r.Context(), &req)
	if err != nil {
		h.respondChatError(w, ip, err)
		return
	}

	response := voicemodel.ChatResponse{
		Text:          result.Text,
		Transcription: result.Transcription,
		Warning:       result.Warning,
	}
	if result.AudioToken != "" {
		response.AudioURL = "/voice/audio?token=" + result.AudioToken
	}

	if result.Warning != "" {
		h.dispatch("turn_degraded", ip, result.Warning)
	} else {
		h.dispatch("turn_served", ip, "")
	}

	utils.RespondJSON(w, http.StatusOK, response)
}

func (h *Handler) respondChatError(w http.ResponseWriter, ip string, err error) {
	var pipeErr *voicesvc.Error
	if !errors.As(err, &pipeErr) {
		log.Printf("[voice] unexpected pipeline error: %v", err)
		h.dispatch("turn_failed", ip, "internal")
		utils.RespondError(w, http.StatusInternalServerError, "An error occurred. Please try again later.")
		return
	}

	status := http.StatusInternalServerError
	switch pipeErr.Kind {
	case voicesvc.KindValidation:
		status = http.StatusBadRequest
	case voicesvc.KindBusy:
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		log.Printf("[voice] pipeline failure: %v", err)
	}
	h.dispatch("turn_failed", ip, pipeErr.Message)
	utils.RespondError(w, status, pipeErr.Message)
}

// handleAudio serves cached audio by token, or synthesizes on demand from
// text. An expired or unknown token is never regenerated silently.
func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	text := r.URL.Query().Get("text")

	if token != "" {
		if data := h.audioCache.Get(token); data != nil {
			writeAudio(w, data)
			return
		}
		if text == "" {
			utils.RespondError(w, http.StatusNotFound, "audio not found or expired")
			return
		}
	}

	if text != "" {
		h.synthesizeOnDemand(w, r, text)
		return
	}

	utils.RespondError(w, http.StatusBadRequest, "Missing token or text parameter")
}

// synthesizeOnDemand is the explicit ephemeral path: the result is streamed
// once and not cached.
func (h *Handler) synthesizeOnDemand(w http.ResponseWriter, r *http.Request, text string) {
	if h.synthesizer == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "speech synthesis unavailable")
		return
	}

	audio, err := h.synthesizer.SynthesizeToBuffer(r.Context(), text)
	if err != nil {
		log.Printf("[voice] on-demand synthesis failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to generate audio")
		return
	}
	if len(audio) == 0 {
		utils.RespondError(w, http.StatusInternalServerError, "Generated audio is empty")
		return
	}

	writeAudio(w, audio)
}

func writeAudio(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("failed to write audio response: %v", err)
	}
}

func (h *Handler) dispatch(eventType, ip, detail string) {
	if h.dispatcher == nil {
		return
	}
	h.dispatcher.Dispatch(analytics.Event{Type: eventType, ClientIP: ip, Detail: detail})
}

// clientIP keys the rate limiter. chi's RealIP middleware has already
// rewritten RemoteAddr from X-Forwarded-For / X-Real-IP when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}
