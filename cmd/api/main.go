package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/soyl-labs/voice-backend/internal/analytics"
	"github.com/soyl-labs/voice-backend/internal/cache"
	"github.com/soyl-labs/voice-backend/internal/config"
	"github.com/soyl-labs/voice-backend/internal/handler"
	voicehandler "github.com/soyl-labs/voice-backend/internal/handler/voice"
	"github.com/soyl-labs/voice-backend/internal/ratelimit"
	"github.com/soyl-labs/voice-backend/internal/service/ai"
	"github.com/soyl-labs/voice-backend/internal/service/proxy"
	"github.com/soyl-labs/voice-backend/internal/service/speech"
	voicesvc "github.com/soyl-labs/voice-backend/internal/service/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	audioCache := cache.NewAudioCache()
	audioCache.StartSweep(ctx)

	limiter := ratelimit.NewLimiter(cfg.RateLimit.Interval, cfg.RateLimit.MaxRequests)

	// Optional upstreams stay nil when unconfigured; the pipeline degrades
	// per stage instead of refusing to boot.
	var replies voicesvc.ReplyGenerator
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize reply model: %v", err)
			log.Println("continuing without reply generation - check ARK_API_KEY / AI_MODEL")
		} else {
			replies = aiService
			log.Println("reply model initialized successfully")
		}
	} else {
		log.Println("reply model credentials not configured, skipping initialization")
	}

	var transcriber voicesvc.Transcriber
	var synthesizer voicesvc.Synthesizer
	var handlerSynthesizer voicehandler.Synthesizer
	if cfg.Speech.Enabled {
		speechService := speech.NewService(cfg.Speech)
		transcriber = speechService
		synthesizer = speechService
		handlerSynthesizer = speechService
		log.Println("speech service initialized successfully")
	} else {
		log.Println("speech credentials not configured, voice turns will degrade to text")
	}

	var proxyForwarder voicesvc.ProxyForwarder
	if cfg.Proxy.Enabled {
		proxyForwarder = proxy.NewClient(cfg.Proxy)
		log.Printf("voice proxy enabled at %s", cfg.Proxy.URL)
	}

	dispatcher := analytics.NewDispatcher(analytics.LogSink{}, 256)
	defer dispatcher.Close()

	chatService := voicesvc.NewService(transcriber, replies, synthesizer, proxyForwarder, audioCache)

	router := handler.NewRouter(chatService, handlerSynthesizer, audioCache, limiter, dispatcher)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("voice backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
