package conversation

import (
	"fmt"
	"sync"
	"testing"

	"mcpbot/internal/domain"
)

func TestGetOrCreateEmpty(t *testing.T) {
	s := NewStore()
	conv := s.GetOrCreate("C1-100.1")
	if conv == nil {
		t.Fatal("expected conversation")
	}
	if got := s.Len("C1-100.1"); got != 0 {
		t.Fatalf("new conversation should be empty, got %d messages", got)
	}
}

func TestAppendAndRecentOrder(t *testing.T) {
	s := NewStore()
	for i := 0; i < 8; i++ {
		s.Append("k", domain.RoleUser, fmt.Sprintf("msg-%d", i), nil)
	}

	got := s.Recent("k", 3)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i, want := range []string{"msg-5", "msg-6", "msg-7"} {
		if got[i].Content != want {
			t.Fatalf("message %d: expected %q, got %q", i, want, got[i].Content)
		}
	}
}

func TestRecentMoreThanStored(t *testing.T) {
	s := NewStore()
	s.Append("k", domain.RoleUser, "only", nil)
	got := s.Recent("k", 10)
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
}

func TestRecentUnknownKeyDoesNotCreate(t *testing.T) {
	s := NewStore()
	if got := s.Recent("missing", 5); got != nil {
		t.Fatalf("expected nil for unknown key, got %v", got)
	}
	s.mu.RLock()
	_, exists := s.conversations["missing"]
	s.mu.RUnlock()
	if exists {
		t.Fatal("read must not create a conversation")
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Append("k", domain.RoleUser, "hello", nil)
	s.Clear("k")
	if got := s.Len("k"); got != 0 {
		t.Fatalf("expected empty after clear, got %d", got)
	}
	// Clearing an unknown key is a no-op.
	s.Clear("unknown")
}

func TestConcurrentCreateSameKey(t *testing.T) {
	s := NewStore()
	const n = 32
	convs := make([]*Conversation, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			convs[i] = s.GetOrCreate("same")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if convs[i] != convs[0] {
			t.Fatal("concurrent creators must observe the same conversation")
		}
	}
}

func TestRecentReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append("k", domain.RoleAssistant, "a", nil)
	got := s.Recent("k", 1)
	got[0].Content = "mutated"
	if s.Recent("k", 1)[0].Content != "a" {
		t.Fatal("Recent must return a copy, not the backing slice")
	}
}
