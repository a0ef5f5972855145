// Package audit persists a record of every tool execution to SQLite.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mcpbot/internal/domain"
)

// Record is one finished tool execution.
type Record struct {
	ID              string
	ConversationKey string
	Tool            string
	Arguments       string
	Success         bool
	Error           string
	Duration        time.Duration
	CreatedAt       time.Time
}

// Store writes tool execution records to a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_executions (
		id               TEXT PRIMARY KEY,
		conversation_key TEXT NOT NULL,
		tool             TEXT NOT NULL,
		arguments        TEXT,
		success          INTEGER NOT NULL,
		error            TEXT,
		duration_ms      INTEGER DEFAULT 0,
		created_at       DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tool_exec_conv ON tool_executions(conversation_key, created_at);
	CREATE INDEX IF NOT EXISTS idx_tool_exec_time ON tool_executions(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordToolExecution stores the outcome of a single tool call.
func (s *Store) RecordToolExecution(ctx context.Context, conversationKey string, res domain.ToolResult, elapsed time.Duration) error {
	args := ""
	if res.Arguments != nil {
		if b, err := json.Marshal(res.Arguments); err == nil {
			args = string(b)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_executions (id, conversation_key, tool, arguments, success, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), conversationKey, res.Tool, args, res.Success, res.Error,
		elapsed.Milliseconds(), time.Now(),
	)
	if err != nil {
		s.logger.Warn("audit write failed", "tool", res.Tool, "error", err)
	}
	return err
}

// Recent returns the last N tool executions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_key, tool, arguments, success, error, duration_ms, created_at
		 FROM tool_executions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		var durMS int64
		if err := rows.Scan(&r.ID, &r.ConversationKey, &r.Tool, &r.Arguments, &r.Success, &r.Error, &durMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durMS) * time.Millisecond
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
