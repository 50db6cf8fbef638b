// Package conversation is the client-side companion of the voice-chat API:
// a bounded message history with optimistic send semantics and tolerant
// audio decoding, for embedding in widgets and tools that talk to the
// backend.
package conversation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Window caps: what the widget keeps in memory versus what survives a page
// reload.
const (
	MaxMessages       = 20
	MaxStoredMessages = 10
	historyLimit      = 10
)

// Per-kind request deadlines. Voice turns pay for transcription and
// synthesis, so they get a little longer.
const (
	VoiceTimeout = 15 * time.Second
	TextTimeout  = 12 * time.Second
)

// MessageState tags the optimistic-send lifecycle.
type MessageState string

const (
	StatePending  MessageState = "pending"
	StateResolved MessageState = "resolved"
	StateFailed   MessageState = "failed"
)

// Roles in the conversation window.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in the client window.
type Message struct {
	ID            string       `json:"id"`
	Role          string       `json:"role"`
	Content       string       `json:"content"`
	Transcription string       `json:"transcription,omitempty"`
	AudioURL      string       `json:"audioUrl,omitempty"`
	State         MessageState `json:"state"`
	Timestamp     time.Time    `json:"timestamp"`
}

// User-facing failure copy. A timeout reads differently from a server
// error so the user knows whether to retry or switch to text.
const (
	voiceUnavailableMessage = "Voice currently unavailable. Please try typing your question instead."
	voiceErrorMessage       = "Voice service error. Please try again."
	textErrorMessage        = "I encountered an error processing your request. Please try again."
)

// ErrRequestTimeout marks turns that lost the race against their deadline.
var ErrRequestTimeout = errors.New("request timed out")

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Audio               string         `json:"audio,omitempty"`
	Text                string         `json:"text,omitempty"`
	ConversationHistory []historyEntry `json:"conversationHistory"`
}

type chatResponse struct {
	Text          string `json:"text"`
	AudioURL      string `json:"audioUrl"`
	Transcription string `json:"transcription"`
	Warning       string `json:"warning"`
	Error         string `json:"error"`
}

// Manager owns the client conversation window and mediates every call to
// the chat endpoint.
type Manager struct {
	mu       sync.Mutex
	messages []Message

	baseURL    string
	httpClient *http.Client
	store      Store

	voiceTimeout time.Duration
	textTimeout  time.Duration
}

// NewManager creates a manager rooted at baseURL (e.g. "http://localhost:8080").
// store may be nil for a purely in-memory window; otherwise the persisted
// window is loaded up front.
func NewManager(baseURL string, store Store) *Manager {
	m := &Manager{
		baseURL:      baseURL,
		httpClient:   &http.Client{},
		store:        store,
		voiceTimeout: VoiceTimeout,
		textTimeout:  TextTimeout,
	}

	if store != nil {
		saved, err := store.Load()
		if err != nil {
			log.Printf("[conversation] failed to load persisted window: %v", err)
		} else if len(saved) > MaxStoredMessages {
			m.messages = saved[len(saved)-MaxStoredMessages:]
		} else {
			m.messages = saved
		}
	}

	return m
}

// Messages returns a copy of the current window.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]Message, len(m.messages))
	copy(copied, m.messages)
	return copied
}

// SendVoiceMessage posts recorded audio. A pending placeholder appears
// immediately; it resolves to the real transcription on success, and on any
// failure it is removed (no ghost message) and a fallback assistant message
// explains the situation. The returned message is the assistant turn.
func (m *Manager) SendVoiceMessage(ctx context.Context, audio []byte) (Message, error) {
	history := m.requestHistory()

	placeholder := m.append(Message{
		Role:          RoleUser,
		Content:       "...",
		Transcription: "Processing...",
		State:         StatePending,
	})

	req := chatRequest{
		Audio:               base64.StdEncoding.EncodeToString(audio),
		ConversationHistory: history,
	}

	resp, err := m.post(ctx, req, m.voiceTimeout)
	if err != nil {
		m.remove(placeholder.ID)
		fallback := voiceErrorMessage
		if errors.Is(err, ErrRequestTimeout) {
			fallback = voiceUnavailableMessage
		}
		m.append(Message{Role: RoleAssistant, Content: fallback, State: StateFailed})
		return Message{}, err
	}

	m.resolve(placeholder.ID, resp.Transcription)

	return m.appendAssistant(resp), nil
}

// SendTextMessage posts a typed turn. The user message is final from the
// start; failure appends an assistant error message instead of removing it.
func (m *Manager) SendTextMessage(ctx context.Context, text string) (Message, error) {
	history := m.requestHistory()

	m.append(Message{Role: RoleUser, Content: text, State: StateResolved})

	req := chatRequest{
		Text:                text,
		ConversationHistory: history,
	}

	resp, err := m.post(ctx, req, m.textTimeout)
	if err != nil {
		m.append(Message{Role: RoleAssistant, Content: textErrorMessage, State: StateFailed})
		return Message{}, err
	}

	return m.appendAssistant(resp), nil
}

// Clear drops the window and the persisted copy.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.messages = nil
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(nil); err != nil {
			log.Printf("[conversation] failed to clear persisted window: %v", err)
		}
	}
}

func (m *Manager) appendAssistant(resp *chatResponse) Message {
	msg := Message{
		Role:    RoleAssistant,
		Content: resp.Text,
		State:   StateResolved,
	}
	if resp.AudioURL != "" {
		msg.AudioURL = m.baseURL + resp.AudioURL
	}
	return m.append(msg)
}

func (m *Manager) post(ctx context.Context, req chatRequest, timeout time.Duration) (*chatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/voice/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			return nil, fmt.Errorf("%w after %s", ErrRequestTimeout, timeout)
		}
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer httpResp.Body.Close()

	var decoded chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		message := decoded.Error
		if message == "" {
			message = "failed to get response"
		}
		return nil, fmt.Errorf("server returned %d: %s", httpResp.StatusCode, message)
	}

	return &decoded, nil
}

// requestHistory snapshots the last turns in wire shape, skipping pending
// and failed entries.
func (m *Manager) requestHistory() []historyEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]historyEntry, 0, len(m.messages))
	for _, msg := range m.messages {
		if msg.State != StateResolved {
			continue
		}
		history = append(history, historyEntry{Role: msg.Role, Content: msg.Content})
	}

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return history
}

func (m *Manager) append(msg Message) Message {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now()

	m.mu.Lock()
	m.messages = append(m.messages, msg)
	if len(m.messages) > MaxMessages {
		m.messages = m.messages[len(m.messages)-MaxMessages:]
	}
	m.mu.Unlock()

	m.persist()
	return msg
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.ID != id {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	m.mu.Unlock()

	m.persist()
}

func (m *Manager) resolve(id, transcription string) {
	m.mu.Lock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].Content = transcription
			m.messages[i].Transcription = transcription
			m.messages[i].State = StateResolved
			break
		}
	}
	m.mu.Unlock()

	m.persist()
}

func (m *Manager) persist() {
	if m.store == nil {
		return
	}

	m.mu.Lock()
	window := m.messages
	if len(window) > MaxStoredMessages {
		window = window[len(window)-MaxStoredMessages:]
	}
	copied := make([]Message, len(window))
	copy(copied, window)
	m.mu.Unlock()

	if err := m.store.Save(copied); err != nil {
		log.Printf("[conversation] failed to persist window: %v", err)
	}
}
