// Package tool dispatches parsed tool invocations to the providers that own
// them and formats the results for the model.
package tool

import (
	"context"
	"fmt"
	"log/slog"

	"mcpbot/internal/domain"
)

const defaultMaxToolCalls = 10

// Dispatcher routes invocations to tool providers. The provider list is
// fixed at construction; registration order decides dispatch precedence when
// two providers expose the same tool name.
type Dispatcher struct {
	providers []domain.ToolProvider
	maxCalls  int
	logger    *slog.Logger
}

// DispatcherConfig holds the dispatcher's dependencies.
type DispatcherConfig struct {
	Providers    []domain.ToolProvider
	MaxToolCalls int
	Logger       *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = defaultMaxToolCalls
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	providers := make([]domain.ToolProvider, len(cfg.Providers))
	copy(providers, cfg.Providers)
	return &Dispatcher{
		providers: providers,
		maxCalls:  cfg.MaxToolCalls,
		logger:    cfg.Logger,
	}
}

// Execute resolves the invocation's tool name against each provider's current
// catalog in registration order and invokes the first match. The catalog is
// fetched fresh per dispatch to tolerate provider-side churn. Failures of any
// kind come back as a failed ToolResult; Execute never returns an error.
func (d *Dispatcher) Execute(ctx context.Context, inv domain.ToolInvocation) domain.ToolResult {
	for _, p := range d.providers {
		catalog, err := p.ListTools(ctx)
		if err != nil {
			d.logger.Error("listing tools failed", "provider", p.Name(), "error", err)
			continue
		}
		if !catalogContains(catalog, inv.Name) {
			continue
		}

		d.logger.Info("executing tool", "tool", inv.Name, "provider", p.Name())
		result, err := p.Invoke(ctx, inv.Name, inv.Arguments)
		if err != nil {
			return domain.ToolResult{
				Tool:      inv.Name,
				Success:   false,
				Arguments: inv.Arguments,
				Error:     err.Error(),
			}
		}
		return domain.ToolResult{
			Tool:      inv.Name,
			Success:   true,
			Arguments: inv.Arguments,
			Result:    result,
		}
	}

	return domain.ToolResult{
		Tool:    inv.Name,
		Success: false,
		Error:   fmt.Sprintf("Tool '%s' not available", inv.Name),
	}
}

// ExecuteAll runs invocations strictly in sequence so side effects on shared
// external state keep their order. Invocations beyond the configured maximum
// are dropped with a warning, not executed.
func (d *Dispatcher) ExecuteAll(ctx context.Context, invs []domain.ToolInvocation) []domain.ToolResult {
	if len(invs) > d.maxCalls {
		d.logger.Warn("limiting tool calls", "requested", len(invs), "max", d.maxCalls)
		invs = invs[:d.maxCalls]
	}
	results := make([]domain.ToolResult, 0, len(invs))
	for _, inv := range invs {
		results = append(results, d.Execute(ctx, inv))
	}
	return results
}

// Catalog returns the union of all provider catalogs in registration order.
// Collisions keep the first occurrence and are logged.
func (d *Dispatcher) Catalog(ctx context.Context) []domain.ToolDescriptor {
	seen := make(map[string]string) // tool name -> provider name
	var out []domain.ToolDescriptor
	for _, p := range d.providers {
		tools, err := p.ListTools(ctx)
		if err != nil {
			d.logger.Error("listing tools failed", "provider", p.Name(), "error", err)
			continue
		}
		for _, t := range tools {
			if owner, dup := seen[t.Name]; dup {
				d.logger.Warn("duplicate tool name, first registrant wins",
					"tool", t.Name, "kept", owner, "ignored", p.Name())
				continue
			}
			seen[t.Name] = p.Name()
			out = append(out, t)
		}
	}
	return out
}

func catalogContains(catalog []domain.ToolDescriptor, name string) bool {
	for _, t := range catalog {
		if t.Name == name {
			return true
		}
	}
	return false
}
