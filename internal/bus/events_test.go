package bus

import (
	"context"
	"testing"
)

func TestInboundMessage_SessionKey(t *testing.T) {
	msg := &InboundMessage{
		Channel: "telegram",
		ChatID:  "12345",
	}

	expected := "telegram:12345"
	if got := msg.SessionKey(); got != expected {
		t.Errorf("SessionKey() = %q, want %q", got, expected)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Fatalf("expected req-123, got %q", got)
	}

	// Blank ids are not stored.
	blank := WithRequestID(context.Background(), "   ")
	if got := RequestIDFromContext(blank); got != "" {
		t.Fatalf("expected blank request id to be dropped, got %q", got)
	}
}

func TestMessageBus_PublishAndConsume(t *testing.T) {
	b := NewMessageBus(2)

	b.PublishInbound(&InboundMessage{Channel: "telegram", ChatID: "1", Content: "покажи расходы"})
	b.PublishOutbound(&OutboundMessage{Channel: "telegram", ChatID: "1", Content: "За какой период?"})

	in := <-b.Inbound()
	if in.Content != "покажи расходы" {
		t.Errorf("unexpected inbound content: %q", in.Content)
	}

	out := <-b.Outbound()
	if out.Content != "За какой период?" {
		t.Errorf("unexpected outbound content: %q", out.Content)
	}
}

func TestMessageBus_DropsWhenFull(t *testing.T) {
	b := NewMessageBus(1)

	b.PublishInbound(&InboundMessage{Channel: "cli", ChatID: "1", Content: "first"})
	// The buffer is full: this publish must drop instead of blocking.
	b.PublishInbound(&InboundMessage{Channel: "cli", ChatID: "1", Content: "second"})

	first := <-b.Inbound()
	if first.Content != "first" {
		t.Errorf("expected first message to survive, got %q", first.Content)
	}

	select {
	case extra := <-b.Inbound():
		t.Errorf("expected the overflow message to be dropped, got %q", extra.Content)
	default:
	}
}
