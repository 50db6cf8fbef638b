package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Store persists the conversation window between sessions. Implementations
// must tolerate concurrent calls from a single Manager.
type Store interface {
	Load() ([]Message, error)
	Save(messages []Message) error
}

// MemoryStore keeps the window in process memory. Useful for tests and for
// tools that do not care about persistence.
type MemoryStore struct {
	mu       sync.Mutex
	messages []Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]Message, len(s.messages))
	copy(copied, s.messages)
	return copied, nil
}

func (s *MemoryStore) Save(messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]Message, len(messages))
	copy(s.messages, messages)
	return nil
}

// FileStore persists the window as JSON on disk, the CLI equivalent of the
// browser's session storage.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the given file path. The file is
// created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read conversation file: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse conversation file: %w", err)
	}

	if len(messages) > MaxStoredMessages {
		messages = messages[len(messages)-MaxStoredMessages:]
	}
	return messages, nil
}

func (s *FileStore) Save(messages []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(messages) > MaxStoredMessages {
		messages = messages[len(messages)-MaxStoredMessages:]
	}

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation window: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write conversation file: %w", err)
	}
	return nil
}
