package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mcpbot/internal/config"
	"mcpbot/internal/domain"
)

// Anthropic is a completer backed by the Anthropic Messages API. The SDK
// retries transient failures with backoff before surfacing an error.
type Anthropic struct {
	model       string
	maxTokens   int
	temperature float64
	client      *anthropic.Client
	logger      *slog.Logger
}

func newAnthropic(cfg config.LLMConfig, timeout time.Duration, logger *slog.Logger) *Anthropic {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.AnthropicAPIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(timeout),
	)
	return &Anthropic{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &client,
		logger:      logger,
	}
}

func (p *Anthropic) Name() string { return string(KindAnthropic) }

func (p *Anthropic) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	system, converted := toAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		Messages:    converted,
		MaxTokens:   int64(p.maxTokens),
		Temperature: anthropic.Float(p.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(block.AsText().Text)
		}
	}
	return sb.String(), nil
}

// toAnthropicMessages hoists system messages into the system parameter
// (Anthropic allows only user and assistant turns in the message list) and
// converts the rest in order.
func toAnthropicMessages(messages []domain.Message) (string, []anthropic.MessageParam) {
	var system []string
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return strings.Join(system, "\n\n"), out
}
