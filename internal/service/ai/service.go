package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/soyl-labs/voice-backend/internal/config"
	"github.com/soyl-labs/voice-backend/internal/model/voice"
)

// Upstream failure classes surfaced to the orchestrator. The operator log at
// the classification site retains the real cause; callers only see the class.
var (
	ErrUpstreamBusy   = errors.New("reply upstream over quota")
	ErrBadCredentials = errors.New("reply upstream rejected credentials")
)

// Service generates assistant replies through the configured chat model.
type Service struct {
	cfg   config.AIConfig
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the reply chain: system prompt, history placeholder,
// user turn, chat model.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}

	return &Service{cfg: cfg, chain: runnable}, nil
}

// GenerateReply produces an assistant reply for the user turn. History is
// already filtered and capped by the orchestrator; it is never re-expanded
// here.
func (s *Service) GenerateReply(ctx context.Context, history []voice.HistoryEntry, userText string) (string, error) {
	input := map[string]any{
		"system":  systemPrompt,
		"history": buildHistoryMessages(history),
		"query":   userText,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", classifyError(err)
	}

	log.Printf("[ai] generated reply, length=%d", len(response.Content))
	return response.Content, nil
}

func buildHistoryMessages(history []voice.HistoryEntry) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	messages := make([]*schema.Message, 0, len(history))
	for _, entry := range history {
		switch entry.Role {
		case voice.RoleUser:
			messages = append(messages, schema.UserMessage(entry.Content))
		case voice.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(entry.Content, nil))
		}
	}
	return messages
}

// classifyError sorts upstream failures into the classes the handler maps to
// status codes. Quota exhaustion and bad credentials both read as "busy" to
// clients, but the logs distinguish them for the operator.
func classifyError(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate_limit") || strings.Contains(msg, "quota"):
		log.Printf("[ai] upstream rate limited: %v", err)
		return fmt.Errorf("%w: %v", ErrUpstreamBusy, err)
	case strings.Contains(msg, "invalid_api_key") || strings.Contains(msg, "authentication"):
		log.Printf("[ai] upstream credentials rejected: %v", err)
		return fmt.Errorf("%w: %v", ErrBadCredentials, err)
	default:
		log.Printf("[ai] reply generation failed: %v", err)
		return fmt.Errorf("failed to run reply chain: %w", err)
	}
}
