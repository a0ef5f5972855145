// Package conversation holds per-conversation message history for the
// lifetime of the process. Nothing is persisted across restarts.
package conversation

import (
	"sync"

	"mcpbot/internal/domain"
)

// Conversation is an append-only message history owned by the Store.
type Conversation struct {
	Key string

	mu       sync.RWMutex
	messages []domain.Message
}

func (c *Conversation) append(msg domain.Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

func (c *Conversation) recent(limit int) []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 || len(c.messages) == 0 {
		return nil
	}
	start := len(c.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]domain.Message, len(c.messages)-start)
	copy(out, c.messages[start:])
	return out
}

func (c *Conversation) clear() {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()
}

func (c *Conversation) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Store maps conversation keys to their histories. The top-level map is
// guarded so two events for a brand-new key cannot race into two divergent
// conversations; the second creator observes and reuses the first's result.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

func NewStore() *Store {
	return &Store{conversations: make(map[string]*Conversation)}
}

// GetOrCreate returns the conversation for key, creating an empty one on
// first access.
func (s *Store) GetOrCreate(key string) *Conversation {
	// Fast path: read lock.
	s.mu.RLock()
	conv, ok := s.conversations[key]
	s.mu.RUnlock()
	if ok {
		return conv
	}

	// Slow path: write lock with double-check.
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[key]; ok {
		return conv
	}
	conv = &Conversation{Key: key}
	s.conversations[key] = conv
	return conv
}

// Append adds a message to the conversation for key, creating it if needed.
func (s *Store) Append(key string, role domain.Role, content string, metadata map[string]string) {
	s.GetOrCreate(key).append(domain.Message{Role: role, Content: content, Metadata: metadata})
}

// Recent returns up to limit most-recent messages in chronological order.
// An unknown key yields nil and is not created as a side effect of the read.
func (s *Store) Recent(key string, limit int) []domain.Message {
	s.mu.RLock()
	conv, ok := s.conversations[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return conv.recent(limit)
}

// Clear truncates the conversation for key to empty. No-op for unknown keys;
// the conversation itself is never deleted.
func (s *Store) Clear(key string) {
	s.mu.RLock()
	conv, ok := s.conversations[key]
	s.mu.RUnlock()
	if !ok {
		return
	}
	conv.clear()
}

// Len reports the number of messages stored for key.
func (s *Store) Len(key string) int {
	s.mu.RLock()
	conv, ok := s.conversations[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return conv.len()
}
