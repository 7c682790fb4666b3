package bus

import "log/slog"

// MessageBus connects channels to the orchestration runner.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage
}

// NewMessageBus creates a bus with the given buffer size per direction.
func NewMessageBus(size int) *MessageBus {
	if size <= 0 {
		size = 1
	}
	return &MessageBus{
		inbound:  make(chan *InboundMessage, size),
		outbound: make(chan *OutboundMessage, size),
	}
}

// PublishInbound queues a message from a channel. Drops when the buffer is full
// so a stalled consumer never blocks channel pollers.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
		slog.Warn("inbound bus full, dropping message", "channel", msg.Channel, "chat_id", msg.ChatID)
	}
}

// PublishOutbound queues a message toward a channel.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
		slog.Warn("outbound bus full, dropping message", "channel", msg.Channel, "chat_id", msg.ChatID)
	}
}

// Inbound returns the inbound message stream.
func (b *MessageBus) Inbound() <-chan *InboundMessage {
	return b.inbound
}

// Outbound returns the outbound message stream.
func (b *MessageBus) Outbound() <-chan *OutboundMessage {
	return b.outbound
}
