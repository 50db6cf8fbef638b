package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every configuration section of the service.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Speech    SpeechConfig
	Proxy     ProxyConfig
	RateLimit RateLimitConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	proxy, err := loadProxyConfig()
	if err != nil {
		return nil, err
	}

	rateLimit, err := loadRateLimitConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Speech:    speech,
		Proxy:     proxy,
		RateLimit: rateLimit,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the reply-generation model. Sampling defaults are tuned
// for short spoken replies: temperature 0.8, at most 400 output tokens.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature float64
	MaxTokens   int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a chat model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("reply model credentials missing: provide ARK_API_KEY + AI_MODEL or AK/SK pair")
	}

	temperature := float32(c.Temperature)
	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature := 0.8
	if override, err := parseOptionalFloatEnv("AI_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		temperature = *override
	}

	maxTokens := 400
	if override, err := parseOptionalIntEnv("AI_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		maxTokens = *override
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("AI_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}

// SpeechConfig describes the transcription and synthesis upstream.
type SpeechConfig struct {
	BaseURL     string
	APIKey      string
	ASRModel    string
	ASRLanguage string
	TTSModel    string
	TTSVoice    string
	Timeout     time.Duration
	Enabled     bool
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("SPEECH_TIMEOUT"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		timeoutSeconds = *override
	}

	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}

	return SpeechConfig{
		BaseURL:     getEnvOrDefault("SPEECH_BASE_URL", "https://api.openai.com/v1"),
		APIKey:      apiKey,
		ASRModel:    getEnvOrDefault("SPEECH_ASR_MODEL", "whisper-1"),
		ASRLanguage: getEnvOrDefault("SPEECH_ASR_LANGUAGE", "en"),
		TTSModel:    getEnvOrDefault("SPEECH_TTS_MODEL", "tts-1"),
		TTSVoice:    getEnvOrDefault("SPEECH_TTS_VOICE", "nova"),
		Timeout:     time.Duration(timeoutSeconds) * time.Second,
		Enabled:     apiKey != "",
	}, nil
}

// ProxyConfig gates the optional external voice-service hop.
type ProxyConfig struct {
	URL     string
	Timeout time.Duration
	Enabled bool
}

func loadProxyConfig() (ProxyConfig, error) {
	url := strings.TrimSpace(os.Getenv("VOICE_PROXY_URL"))

	timeoutSeconds := 20
	if override, err := parseOptionalIntEnv("VOICE_PROXY_TIMEOUT"); err != nil {
		return ProxyConfig{}, err
	} else if override != nil {
		timeoutSeconds = *override
	}

	return ProxyConfig{
		URL:     url,
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Enabled: url != "",
	}, nil
}

// RateLimitConfig bounds per-IP request volume on the chat endpoint.
type RateLimitConfig struct {
	Interval    time.Duration
	MaxRequests int
}

func loadRateLimitConfig() (RateLimitConfig, error) {
	intervalSeconds := 60
	if override, err := parseOptionalIntEnv("RATE_LIMIT_INTERVAL"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil {
		intervalSeconds = *override
	}

	maxRequests := 10
	if override, err := parseOptionalIntEnv("RATE_LIMIT_MAX"); err != nil {
		return RateLimitConfig{}, err
	} else if override != nil {
		maxRequests = *override
	}

	return RateLimitConfig{
		Interval:    time.Duration(intervalSeconds) * time.Second,
		MaxRequests: maxRequests,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
