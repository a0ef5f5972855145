// Package provider implements completion providers on top of the official
// vendor SDKs. The provider kind is a closed set resolved once from the
// configured model name; the rest of the system only sees domain.Completer.
package provider

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mcpbot/internal/config"
	"mcpbot/internal/domain"
)

// Kind identifies a completion provider implementation.
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindGroq      Kind = "groq"
	KindAnthropic Kind = "anthropic"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// ResolveKind maps a model name to its provider kind. This is decided once
// at configuration time; unknown model families are a configuration error,
// not a runtime fallback.
func ResolveKind(model string) (Kind, error) {
	switch {
	case strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "ft:gpt-"):
		return KindOpenAI, nil
	case strings.HasPrefix(model, "llama-"):
		return KindGroq, nil
	case strings.HasPrefix(model, "claude-"):
		return KindAnthropic, nil
	default:
		return "", fmt.Errorf("unsupported model: %s", model)
	}
}

// New builds the completer for the configured model.
func New(cfg config.LLMConfig, logger *slog.Logger) (domain.Completer, error) {
	kind, err := ResolveKind(cfg.Model)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch kind {
	case KindOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("model %s requires OPENAI_API_KEY", cfg.Model)
		}
		return newOpenAICompatible(string(KindOpenAI), cfg.OpenAIAPIKey, "", cfg, timeout, logger), nil
	case KindGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("model %s requires GROQ_API_KEY", cfg.Model)
		}
		return newOpenAICompatible(string(KindGroq), cfg.GroqAPIKey, groqBaseURL, cfg, timeout, logger), nil
	case KindAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("model %s requires ANTHROPIC_API_KEY", cfg.Model)
		}
		return newAnthropic(cfg, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unhandled provider kind: %s", kind)
	}
}
