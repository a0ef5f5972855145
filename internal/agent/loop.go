package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mcpbot/internal/conversation"
	"mcpbot/internal/domain"
	"mcpbot/internal/metrics"
	"mcpbot/internal/tool"
)

const (
	defaultMaxIterations = 10
	defaultHistoryLimit  = 5
	defaultConcurrency   = 3
	defaultRateBurst     = 5
	defaultRatePerMinute = 30.0

	maxStepsNotice = "Maximum steps reached. Stopping here; ask me to continue if you need more."
)

// AuditRecorder persists finished tool executions. Satisfied by audit.Store.
type AuditRecorder interface {
	RecordToolExecution(ctx context.Context, conversationKey string, res domain.ToolResult, elapsed time.Duration) error
}

// Orchestrator is the core engine: receive message → call LLM → relay the
// turn → execute the requested tool → feed the result back → repeat until
// the model stops asking for tools or ends the conversation.
type Orchestrator struct {
	completer     domain.Completer
	store         *conversation.Store
	dispatcher    *tool.Dispatcher
	bus           domain.MessageBus
	recorder      AuditRecorder
	logger        *slog.Logger
	maxIterations int
	historyLimit  int
	concurrency   int
	rateLimiter   *RateLimiter

	// keyLocks serializes loops that share a conversation key.
	keyMu    sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// OrchestratorConfig holds all dependencies and tuning parameters.
type OrchestratorConfig struct {
	Completer     domain.Completer
	Store         *conversation.Store
	Dispatcher    *tool.Dispatcher
	Bus           domain.MessageBus
	Recorder      AuditRecorder // optional
	Logger        *slog.Logger
	MaxIterations int
	HistoryLimit  int
	Concurrency   int // max parallel messages (default 3)
	RatePerMinute float64
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = defaultRatePerMinute
	}
	return &Orchestrator{
		completer:     cfg.Completer,
		store:         cfg.Store,
		dispatcher:    cfg.Dispatcher,
		bus:           cfg.Bus,
		recorder:      cfg.Recorder,
		logger:        cfg.Logger,
		maxIterations: cfg.MaxIterations,
		historyLimit:  cfg.HistoryLimit,
		concurrency:   cfg.Concurrency,
		rateLimiter:   NewRateLimiter(defaultRateBurst, cfg.RatePerMinute),
		keyLocks:      make(map[string]*sync.Mutex),
	}
}

// Run consumes inbound messages and processes them with bounded concurrency.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info("orchestrator started", "concurrency", o.concurrency)

	sem := make(chan struct{}, o.concurrency)
	inbound := o.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				o.logger.Info("inbound channel closed, orchestrator stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				o.ProcessMessage(ctx, m)
			}(msg)
		}
	}
}

// ProcessMessage runs one message through the loop and reports any failure
// back to the user instead of surfacing it.
func (o *Orchestrator) ProcessMessage(ctx context.Context, msg domain.InboundMessage) {
	metrics.MessagesTotal.Inc()
	metrics.ActiveHandlers.Inc()
	defer metrics.ActiveHandlers.Dec()

	o.logger.Info("processing message",
		"channel", msg.Channel,
		"sender", msg.SenderID,
		"text_len", len(msg.Text),
	)

	if err := o.handleMessage(ctx, msg); err != nil {
		o.logger.Error("message processing failed", "error", err)
		o.relay(msg, fmt.Sprintf("Sorry, I encountered an error: %s", err.Error()), false)
	}
}

// handleMessage is the main loop: build prompt → call LLM → relay turn →
// execute the requested tool → feed result back → repeat.
func (o *Orchestrator) handleMessage(ctx context.Context, msg domain.InboundMessage) error {
	key := msg.ConversationKey
	if key == "" {
		key = msg.ChatID
	}

	lock := o.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	o.store.Append(key, domain.RoleUser, msg.Text, nil)

	catalog := append(o.dispatcher.Catalog(ctx), tool.SystemTools()...)
	msgs := make([]domain.Message, 0, o.historyLimit+2)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: BuildSystemPrompt(catalog)})
	msgs = append(msgs, o.store.Recent(key, o.historyLimit)...)

	for i := 0; i < o.maxIterations; i++ {
		if err := o.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}

		start := time.Now()
		metrics.CompletionsTotal.Inc()
		resp, err := o.completer.Complete(ctx, msgs)
		metrics.CompletionLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.CompletionErrors.Inc()
			return fmt.Errorf("completion: %w", err)
		}

		// Every model turn goes to the user, tool markup included.
		o.relay(msg, resp, false)
		msgs = append(msgs, domain.Message{Role: domain.RoleAssistant, Content: resp})

		_, invs := Parse(resp)
		if len(invs) == 0 {
			if HasMarker(resp) {
				// Marker present but unusable. Drop the turn and ask for
				// a correctly formatted one.
				o.logger.Warn("malformed tool call, requesting retry", "iteration", i+1)
				msgs = msgs[:len(msgs)-1]
				msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: formatCorrective})
				continue
			}
			// Plain answer: the conversation turn is done.
			o.store.Append(key, domain.RoleAssistant, resp, nil)
			return nil
		}

		o.store.Append(key, domain.RoleAssistant, resp, nil)

		if len(invs) > 1 {
			o.logger.Warn("multiple tool calls in one turn, executing first only", "count", len(invs))
			msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: singleToolCorrective})
		}
		inv := invs[0]

		switch inv.Name {
		case tool.EndConversation:
			if closing, ok := inv.Arguments["message"].(string); ok && closing != "" {
				o.relay(msg, closing, false)
				o.store.Append(key, domain.RoleAssistant, closing, nil)
			}
			return nil

		case tool.ReportProgress:
			note, _ := inv.Arguments["message"].(string)
			if note != "" {
				o.relay(msg, note, true)
			}
			msgs = append(msgs, domain.Message{Role: domain.RoleAssistant, Content: "[progress] " + note})
			continue
		}

		o.relay(msg, fmt.Sprintf("Using tool `%s`...", inv.Name), true)

		toolStart := time.Now()
		res := o.dispatcher.Execute(ctx, inv)
		elapsed := time.Since(toolStart)

		metrics.ToolExecutions.Inc()
		metrics.ToolLatency.Observe(elapsed.Seconds())
		if !res.Success {
			metrics.ToolFailures.Inc()
		}
		if o.recorder != nil {
			_ = o.recorder.RecordToolExecution(ctx, key, res, elapsed)
		}

		msgs = append(msgs, domain.Message{
			Role:    domain.RoleUser,
			Content: tool.FormatResults([]domain.ToolResult{res}),
		})
	}

	metrics.IterationCapsHit.Inc()
	o.logger.Warn("iteration cap reached", "key", key, "cap", o.maxIterations)
	o.relay(msg, maxStepsNotice, true)
	return nil
}

// ProcessDirect handles a message synchronously. Replies still flow through
// the bus to whatever handler is registered for the channel. Used by the
// CLI chat command.
func (o *Orchestrator) ProcessDirect(ctx context.Context, channel, chatID, text string) error {
	return o.handleMessage(ctx, domain.InboundMessage{
		Channel:   channel,
		ChatID:    chatID,
		SenderID:  "user",
		Text:      text,
		Timestamp: time.Now(),
	})
}

func (o *Orchestrator) relay(msg domain.InboundMessage, text string, aside bool) {
	o.bus.SendOutbound(domain.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		ThreadTS: msg.ThreadTS,
		Text:     text,
		Aside:    aside,
	})
}

func (o *Orchestrator) lockFor(key string) *sync.Mutex {
	o.keyMu.Lock()
	defer o.keyMu.Unlock()
	l, ok := o.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		o.keyLocks[key] = l
	}
	return l
}
