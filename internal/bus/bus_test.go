package bus

import (
	"log/slog"
	"testing"
	"time"

	"mcpbot/internal/domain"
)

func newTestBus(size int) *InMemoryBus {
	return New(size, slog.New(slog.DiscardHandler))
}

func TestPublishSubscribe(t *testing.T) {
	b := newTestBus(4)
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "slack", Text: "hello"})

	select {
	case msg := <-b.Subscribe():
		if msg.Text != "hello" {
			t.Fatalf("unexpected message %q", msg.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestOutboundRouting(t *testing.T) {
	b := newTestBus(1)
	defer b.Close()

	got := make(chan domain.OutboundMessage, 1)
	b.OnOutbound("slack", func(msg domain.OutboundMessage) { got <- msg })

	// No handler for this channel: must not panic, just drop.
	b.SendOutbound(domain.OutboundMessage{Channel: "cli", Text: "ignored"})

	b.SendOutbound(domain.OutboundMessage{Channel: "slack", ChatID: "C1", Text: "reply"})
	select {
	case msg := <-got:
		if msg.ChatID != "C1" || msg.Text != "reply" {
			t.Fatalf("unexpected outbound %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}

func TestPublishAfterClose(t *testing.T) {
	b := newTestBus(1)
	b.Close()
	b.Close() // idempotent

	// Must not panic on a closed bus.
	b.Publish(domain.InboundMessage{Channel: "slack", Text: "late"})
}

func TestPublishBlocksWhenFull(t *testing.T) {
	b := newTestBus(1)
	defer b.Close()

	b.Publish(domain.InboundMessage{Text: "first"})

	done := make(chan struct{})
	go func() {
		b.Publish(domain.InboundMessage{Text: "second"})
		close(done)
	}()

	// Drain one slot so the blocked publish can complete.
	<-b.Subscribe()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish did not complete after drain")
	}

	msg := <-b.Subscribe()
	if msg.Text != "second" {
		t.Fatalf("unexpected message %q", msg.Text)
	}
}
