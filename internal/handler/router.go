package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soyl-labs/voice-backend/internal/analytics"
	"github.com/soyl-labs/voice-backend/internal/cache"
	voicehandler "github.com/soyl-labs/voice-backend/internal/handler/voice"
	middlewarePkg "github.com/soyl-labs/voice-backend/internal/middleware"
	"github.com/soyl-labs/voice-backend/internal/ratelimit"
	"github.com/soyl-labs/voice-backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc voicehandler.ChatService, synthesizer voicehandler.Synthesizer, audioCache *cache.AudioCache, limiter *ratelimit.Limiter, dispatcher *analytics.Dispatcher) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	voiceHandler := voicehandler.New(chatSvc, synthesizer, audioCache, limiter, dispatcher)
	voiceHandler.RegisterRoutes(r, voicehandler.NewWebSocketHandler(chatSvc))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	return r
}
