package channel

import (
	"log/slog"
	"strings"
	"testing"

	"mcpbot/internal/domain"

	"github.com/slack-go/slack/slackevents"
)

type stubBus struct {
	published []domain.InboundMessage
}

func (b *stubBus) Publish(msg domain.InboundMessage)                         { b.published = append(b.published, msg) }
func (b *stubBus) Subscribe() <-chan domain.InboundMessage                   { return nil }
func (b *stubBus) SendOutbound(msg domain.OutboundMessage)                   {}
func (b *stubBus) OnOutbound(name string, h func(domain.OutboundMessage))    {}
func (b *stubBus) Close()                                                    {}

func testSlack(bus domain.MessageBus) *Slack {
	return &Slack{
		bus:    bus,
		botUID: "UBOT",
		logger: slog.New(slog.DiscardHandler),
	}
}

func mentionEvent(user, channel, threadTS, ts, text string) slackevents.EventsAPIEvent {
	return slackevents.EventsAPIEvent{
		Type: slackevents.CallbackEvent,
		InnerEvent: slackevents.EventsAPIInnerEvent{
			Data: &slackevents.AppMentionEvent{
				User:            user,
				Channel:         channel,
				ThreadTimeStamp: threadTS,
				TimeStamp:       ts,
				Text:            text,
			},
		},
	}
}

func dmEvent(user, channelType, subType, text string) slackevents.EventsAPIEvent {
	return slackevents.EventsAPIEvent{
		Type: slackevents.CallbackEvent,
		InnerEvent: slackevents.EventsAPIInnerEvent{
			Data: &slackevents.MessageEvent{
				User:        user,
				Channel:     "D1",
				ChannelType: channelType,
				SubType:     subType,
				TimeStamp:   "200.0",
				Text:        text,
			},
		},
	}
}

func TestMentionPublishedWithStrippedText(t *testing.T) {
	bus := &stubBus{}
	s := testSlack(bus)

	s.handleEventsAPI(t.Context(), mentionEvent("U1", "C1", "", "100.5", "<@UBOT> list the tables"))

	if len(bus.published) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(bus.published))
	}
	msg := bus.published[0]
	if msg.Text != "list the tables" {
		t.Fatalf("mention not stripped: %q", msg.Text)
	}
	if msg.ConversationKey != "C1-100.5" {
		t.Fatalf("unexpected conversation key %q", msg.ConversationKey)
	}
	if msg.ThreadTS != "100.5" {
		t.Fatalf("unexpected thread ts %q", msg.ThreadTS)
	}
}

func TestThreadedMentionKeyUsesRootThread(t *testing.T) {
	bus := &stubBus{}
	s := testSlack(bus)

	s.handleEventsAPI(t.Context(), mentionEvent("U1", "C1", "100.5", "101.0", "<@UBOT> and now?"))

	if bus.published[0].ConversationKey != "C1-100.5" {
		t.Fatalf("thread replies must share the root key, got %q", bus.published[0].ConversationKey)
	}
}

func TestSelfMessagesSuppressed(t *testing.T) {
	bus := &stubBus{}
	s := testSlack(bus)

	s.handleEventsAPI(t.Context(), mentionEvent("UBOT", "C1", "", "100.5", "echo"))
	s.handleEventsAPI(t.Context(), dmEvent("UBOT", "im", "", "echo"))

	if len(bus.published) != 0 {
		t.Fatalf("bot's own messages must be ignored, got %d", len(bus.published))
	}
}

func TestOnlyPlainDirectMessagesPublished(t *testing.T) {
	bus := &stubBus{}
	s := testSlack(bus)

	s.handleEventsAPI(t.Context(), dmEvent("U1", "channel", "", "in a channel"))
	s.handleEventsAPI(t.Context(), dmEvent("U1", "im", "message_changed", "edited"))
	if len(bus.published) != 0 {
		t.Fatalf("non-DM or subtyped messages must be ignored, got %d", len(bus.published))
	}

	s.handleEventsAPI(t.Context(), dmEvent("U1", "im", "", "hello there"))
	if len(bus.published) != 1 || bus.published[0].Text != "hello there" {
		t.Fatalf("expected the plain DM, got %+v", bus.published)
	}
}

func TestConversationKeyDeterministic(t *testing.T) {
	if k := ConversationKey("C9", "", "42.1"); k != "C9-42.1" {
		t.Fatalf("top-level key wrong: %q", k)
	}
	if k := ConversationKey("C9", "42.1", "43.7"); k != "C9-42.1" {
		t.Fatalf("threaded key wrong: %q", k)
	}
	a := ConversationKey("C9", "42.1", "43.7")
	b := ConversationKey("C9", "42.1", "44.0")
	if a != b {
		t.Fatal("same thread must map to the same key")
	}
}

func TestSplitSlackMessage(t *testing.T) {
	if got := splitSlackMessage("short", 4000); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short message should be unchanged: %v", got)
	}

	long := strings.Repeat("line one two three\n", 300) // ~5700 bytes
	chunks := splitSlackMessage(long, 4000)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	var total int
	for _, c := range chunks {
		if len(c) > 4000 {
			t.Fatalf("chunk exceeds limit: %d", len(c))
		}
		total += len(c)
	}
	if total != len(long) {
		t.Fatalf("splitter lost content: %d != %d", total, len(long))
	}
}

func TestItalicize(t *testing.T) {
	got := italicize("working on it\n\nstill going")
	if got != "_working on it_\n\n_still going_" {
		t.Fatalf("unexpected italics: %q", got)
	}
}
