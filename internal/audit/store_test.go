package audit

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"mcpbot/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()

	err := s.RecordToolExecution(ctx, "C1-111.0", domain.ToolResult{
		Tool:      "query",
		Success:   true,
		Arguments: map[string]any{"sql": "SELECT 1"},
	}, 42*time.Millisecond)
	if err != nil {
		t.Fatalf("RecordToolExecution: %v", err)
	}
	err = s.RecordToolExecution(ctx, "C1-111.0", domain.ToolResult{
		Tool:    "fetch",
		Success: false,
		Error:   "connection refused",
	}, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("RecordToolExecution: %v", err)
	}

	recs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, r := range recs {
		if r.ID == "" {
			t.Fatal("record missing id")
		}
		if r.ConversationKey != "C1-111.0" {
			t.Fatalf("unexpected conversation key %q", r.ConversationKey)
		}
	}

	var byTool = map[string]Record{}
	for _, r := range recs {
		byTool[r.Tool] = r
	}
	q := byTool["query"]
	if !q.Success || q.Arguments != `{"sql":"SELECT 1"}` || q.Duration != 42*time.Millisecond {
		t.Fatalf("query record wrong: %+v", q)
	}
	f := byTool["fetch"]
	if f.Success || f.Error != "connection refused" {
		t.Fatalf("fetch record wrong: %+v", f)
	}
}

func TestRecentLimit(t *testing.T) {
	s := testStore(t)
	ctx := t.Context()
	for i := 0; i < 5; i++ {
		if err := s.RecordToolExecution(ctx, "k", domain.ToolResult{Tool: "t", Success: true}, 0); err != nil {
			t.Fatalf("RecordToolExecution: %v", err)
		}
	}
	recs, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}
