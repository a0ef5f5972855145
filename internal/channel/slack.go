package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mcpbot/internal/domain"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const slackMaxMsgLen = 4000

// CatalogFunc supplies the aggregate tool catalog for the App Home tab.
type CatalogFunc func(ctx context.Context) []domain.ToolDescriptor

// Slack implements domain.Channel for Slack using Socket Mode.
type Slack struct {
	botToken string
	appToken string
	client   *slack.Client
	socket   *socketmode.Client
	bus      domain.MessageBus
	catalog  CatalogFunc
	logger   *slog.Logger
	botUID   string // the bot's own user ID, to avoid replying to self
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken string
	AppToken string
	Catalog  CatalogFunc // optional, used for the App Home tab
	Logger   *slog.Logger
}

// NewSlack creates a new Slack channel handler.
func NewSlack(cfg SlackConfig) *Slack {
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		catalog:  cfg.Catalog,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Start connects to Slack via Socket Mode and begins listening for events.
func (s *Slack) Start(ctx context.Context, bus domain.MessageBus) error {
	s.bus = bus

	api := slack.New(
		s.botToken,
		slack.OptionAppLevelToken(s.appToken),
	)
	s.client = api

	authResp, err := api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(api)
	s.socket = socketClient

	bus.OnOutbound("slack", func(msg domain.OutboundMessage) {
		if msg.Text == "" {
			return
		}
		s.sendMessage(msg)
	})

	go func() {
		for evt := range socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleEventsAPI(ctx, eventsAPIEvent)

			default:
				// Acknowledge unknown events to prevent Socket Mode disconnection.
				if evt.Request != nil {
					socketClient.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

func (s *Slack) Stop() error { return nil }

func (s *Slack) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		if ev.User == s.botUID || ev.User == "" {
			return
		}
		s.logger.Info("slack mention received", "user", ev.User, "channel", ev.Channel)
		s.publish(ev.Channel, ev.ThreadTimeStamp, ev.TimeStamp, ev.User, ev.Text)

	case *slackevents.MessageEvent:
		// Direct messages only; channel traffic arrives via app_mention.
		if ev.User == s.botUID || ev.User == "" {
			return
		}
		if ev.ChannelType != "im" || ev.SubType != "" {
			return
		}
		s.logger.Info("slack dm received", "user", ev.User, "channel", ev.Channel)
		s.publish(ev.Channel, ev.ThreadTimeStamp, ev.TimeStamp, ev.User, ev.Text)

	case *slackevents.AppHomeOpenedEvent:
		if ev.Tab != "home" {
			return
		}
		s.publishHomeTab(ctx, ev.User)
	}
}

func (s *Slack) publish(channelID, threadTS, ts, user, text string) {
	if s.botUID != "" {
		text = strings.ReplaceAll(text, "<@"+s.botUID+">", "")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.bus.Publish(domain.InboundMessage{
		Channel:         "slack",
		ChatID:          channelID,
		ThreadTS:        replyThread(threadTS, ts),
		ConversationKey: ConversationKey(channelID, threadTS, ts),
		SenderID:        user,
		Text:            text,
		Timestamp:       time.Now(),
	})
}

// ConversationKey derives the stable per-thread key. Replies in a thread
// share the root thread_ts; top-level messages use their own ts.
func ConversationKey(channelID, threadTS, ts string) string {
	return channelID + "-" + replyThread(threadTS, ts)
}

func replyThread(threadTS, ts string) string {
	if threadTS != "" {
		return threadTS
	}
	return ts
}

func (s *Slack) sendMessage(msg domain.OutboundMessage) {
	text := msg.Text
	if msg.Aside {
		text = italicize(text)
	}
	for _, chunk := range splitSlackMessage(text, slackMaxMsgLen) {
		opts := []slack.MsgOption{slack.MsgOptionText(chunk, false)}
		if msg.ThreadTS != "" {
			opts = append(opts, slack.MsgOptionTS(msg.ThreadTS))
		}
		if _, _, err := s.client.PostMessage(msg.ChatID, opts...); err != nil {
			s.logger.Error("slack send failed", "channel", msg.ChatID, "err", err)
		}
	}
}

// italicize wraps each non-empty line so multi-line asides render in italics.
func italicize(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines[i] = "_" + line + "_"
	}
	return strings.Join(lines, "\n")
}

func (s *Slack) publishHomeTab(ctx context.Context, userID string) {
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, "MCP Assistant", false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
			"Mention me in a channel or send me a direct message. I can use the tools below to help you.", false, false), nil, nil),
		slack.NewDividerBlock(),
	}

	var tools []domain.ToolDescriptor
	if s.catalog != nil {
		tools = s.catalog(ctx)
	}
	if len(tools) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType,
			"_No tools connected._", false, false), nil, nil))
	}
	for _, t := range tools {
		if t.IsSystem {
			continue
		}
		text := fmt.Sprintf("*%s*\n%s", t.Name, t.Description)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil))
	}

	view := slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: blocks},
	}
	if _, err := s.client.PublishView(userID, view, ""); err != nil {
		s.logger.Error("slack home tab publish failed", "user", userID, "err", err)
	}
}

func splitSlackMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
