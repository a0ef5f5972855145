package domain

import "context"

// ToolDescriptor describes one callable tool in the aggregate catalog.
// Names are unique across the union of all registered providers plus system
// tools; on collision the first registrant wins.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	IsSystem    bool           `json:"is_system,omitempty"`
}

// ToolInvocation is a single tool call parsed from model output. Transient;
// never persisted.
type ToolInvocation struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of executing one invocation.
type ToolResult struct {
	Tool      string         `json:"tool"`
	Success   bool           `json:"success"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    any            `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ToolProvider is an external process exposing a catalog of callable tools.
// ListTools and Invoke must be safe for concurrent use from multiple
// conversations. Invoke owns its retry policy: it retries transient failures
// internally and returns an error only after exhausting attempts.
type ToolProvider interface {
	Name() string
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}
