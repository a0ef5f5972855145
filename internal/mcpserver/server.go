// Package mcpserver connects to external MCP servers and exposes them as
// tool providers for the dispatcher.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mcpbot/internal/domain"
)

const (
	defaultRetryAttempts = 2
	defaultRetryDelay    = time.Second
	clientName           = "mcpbot"
	clientVersion        = "1.0.0"
)

// Server is one connected MCP server. It implements domain.ToolProvider.
// ListTools and Invoke are safe for concurrent use; the underlying SDK
// session serializes the wire protocol.
type Server struct {
	name    string
	cfg     ServerConfig
	session *mcp.ClientSession
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

// Options tune retry behavior for all servers.
type Options struct {
	RetryAttempts int
	RetryDelay    time.Duration
	Logger        *slog.Logger
}

func New(name string, cfg ServerConfig, opts Options) *Server {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		name:    name,
		cfg:     cfg,
		retries: opts.RetryAttempts,
		delay:   opts.RetryDelay,
		logger:  opts.Logger,
	}
}

func (s *Server) Name() string { return s.name }

// Connect establishes the session over stdio (command) or SSE (url).
func (s *Server) Connect(ctx context.Context) error {
	var tp mcp.Transport
	switch {
	case s.cfg.Command != "":
		cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
		if len(s.cfg.Env) > 0 {
			env := os.Environ()
			for k, v := range s.cfg.Env {
				env = append(env, k+"="+v)
			}
			cmd.Env = env
		}
		tp = &mcp.CommandTransport{Command: cmd}
	case s.cfg.URL != "":
		tp = &mcp.SSEClientTransport{Endpoint: s.cfg.URL}
	default:
		return fmt.Errorf("server %s: neither command nor url configured", s.name)
	}

	cli := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: clientVersion}, nil)
	session, err := cli.Connect(ctx, tp, nil)
	if err != nil {
		return fmt.Errorf("connect to server %s: %w", s.name, err)
	}
	s.session = session
	s.logger.Info("mcp server connected", "server", s.name)
	return nil
}

// ListTools fetches the server's current tool catalog.
func (s *Server) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	if s.session == nil {
		return nil, fmt.Errorf("server %s not connected", s.name)
	}
	resp, err := s.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools on %s: %w", s.name, err)
	}

	out := make([]domain.ToolDescriptor, 0, len(resp.Tools))
	for _, tl := range resp.Tools {
		schema, err := schemaToMap(tl.InputSchema)
		if err != nil {
			s.logger.Warn("skipping tool with unusable schema", "server", s.name, "tool", tl.Name, "error", err)
			continue
		}
		out = append(out, domain.ToolDescriptor{
			Name:        tl.Name,
			Description: tl.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

// Invoke calls a tool with bounded retries and a fixed delay between
// attempts, then flattens the response content into a plain value.
func (s *Server) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	if s.session == nil {
		return nil, fmt.Errorf("server %s not connected", s.name)
	}

	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		res, err := s.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		if err == nil {
			if res.IsError {
				return nil, fmt.Errorf("tool %s reported an error: %s", name, flattenText(res))
			}
			return flattenResult(res), nil
		}

		lastErr = err
		s.logger.Warn("tool call failed", "server", s.name, "tool", name,
			"attempt", attempt, "of", s.retries, "error", err)
		if attempt < s.retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
	return nil, fmt.Errorf("tool %s failed after %d attempts: %w", name, s.retries, lastErr)
}

// Close shuts down the session and, for stdio servers, the child process.
func (s *Server) Close() error {
	if s.session == nil {
		return nil
	}
	return s.session.Close()
}

// schemaToMap converts the SDK's schema type into the plain map the rest of
// the system carries around.
func schemaToMap(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// flattenResult turns a CallTool response into a value the result formatter
// can render: concatenated text when every block is text (decoded as JSON
// when it parses), the raw content marshaled to JSON otherwise.
func flattenResult(res *mcp.CallToolResult) any {
	text, allText := textBlocks(res)
	if allText {
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var v any
			if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
				return v
			}
		}
		return text
	}
	out, err := json.Marshal(res.Content)
	if err != nil {
		return fmt.Sprintf("%v", res.Content)
	}
	return json.RawMessage(out)
}

func flattenText(res *mcp.CallToolResult) string {
	text, _ := textBlocks(res)
	return text
}

func textBlocks(res *mcp.CallToolResult) (string, bool) {
	var sb strings.Builder
	allText := true
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(tc.Text)
		} else {
			allText = false
		}
	}
	return sb.String(), allText
}
