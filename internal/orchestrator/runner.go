package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adpilot/adpilot/internal/bus"
	"github.com/adpilot/adpilot/internal/domain"
	"github.com/adpilot/adpilot/internal/session"
)

// Runner consumes inbound messages from the bus, carries per-session turn
// state across messages and publishes the rendered envelope back out.
type Runner struct {
	bus      *bus.MessageBus
	core     *Orchestrator
	sessions *session.Manager
}

// NewRunner wires the orchestrator to a bus and a session store.
func NewRunner(msgBus *bus.MessageBus, core *Orchestrator, sessions *session.Manager) *Runner {
	return &Runner{
		bus:      msgBus,
		core:     core,
		sessions: sessions,
	}
}

// Run starts the consume loop and blocks until the context is done.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("orchestration runner started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-r.bus.Inbound():
			if !ok {
				return fmt.Errorf("inbound channel closed")
			}
			if msg == nil {
				slog.Warn("received nil inbound message")
				continue
			}
			if strings.TrimSpace(msg.RequestID) == "" {
				msg.RequestID = bus.NewRequestID()
			}

			content, err := r.processMessage(ctx, msg)
			if err != nil {
				slog.Error("process message failed",
					"request_id", msg.RequestID,
					"channel", msg.Channel,
					"chat_id", msg.ChatID,
					"session_key", msg.SessionKey(),
					"error", err,
				)
				content = "Error: " + err.Error()
			}
			r.bus.PublishOutbound(&bus.OutboundMessage{
				Channel:   msg.Channel,
				ChatID:    msg.ChatID,
				Content:   content,
				RequestID: msg.RequestID,
			})
		}
	}
}

func (r *Runner) processMessage(ctx context.Context, msg *bus.InboundMessage) (string, error) {
	slog.Info("processing message",
		"request_id", msg.RequestID,
		"channel", msg.Channel,
		"chat_id", msg.ChatID,
		"sender", msg.SenderID,
		"session_key", msg.SessionKey(),
	)

	sess := r.sessions.GetOrCreate(msg.SessionKey())
	state := sess.TurnState()

	result, err := r.core.HandleTurn(bus.WithRequestID(ctx, msg.RequestID), TurnRequest{
		Channel:       msg.Channel,
		ChatID:        msg.ChatID,
		SenderID:      msg.SenderID,
		RequestID:     msg.RequestID,
		Message:       msg.Content,
		PriorIntent:   domain.Intent(state.Intent),
		Answers:       state.Answers,
		PendingPlanID: state.PendingPlanID,
	})
	if err != nil {
		return "", err
	}

	sess.SetTurnState(session.TurnState{
		Intent:        string(result.Intent),
		Answers:       result.Answers,
		PendingPlanID: result.PendingPlanID,
	})
	sess.AddMessage("user", msg.Content)
	sess.AddMessage("assistant", result.Envelope.Text)
	if err := r.sessions.Save(sess); err != nil {
		slog.Warn("session save failed", "session_key", msg.SessionKey(), "error", err)
	}

	return result.Envelope.Text, nil
}

// ProcessForChannel processes a message synchronously for a channel/chat,
// bypassing the bus. Used by the CLI chat and the gateway.
func (r *Runner) ProcessForChannel(ctx context.Context, channel, chatID, senderID, content string) (Envelope, error) {
	if strings.TrimSpace(channel) == "" {
		channel = "cli"
	}
	if strings.TrimSpace(chatID) == "" {
		chatID = "direct"
	}
	if strings.TrimSpace(senderID) == "" {
		senderID = "user"
	}

	requestID := bus.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = bus.NewRequestID()
	}

	sess := r.sessions.GetOrCreate(channel + ":" + chatID)
	state := sess.TurnState()

	result, err := r.core.HandleTurn(bus.WithRequestID(ctx, requestID), TurnRequest{
		Channel:       channel,
		ChatID:        chatID,
		SenderID:      senderID,
		RequestID:     requestID,
		Message:       content,
		PriorIntent:   domain.Intent(state.Intent),
		Answers:       state.Answers,
		PendingPlanID: state.PendingPlanID,
	})
	if err != nil {
		return Envelope{}, err
	}

	sess.SetTurnState(session.TurnState{
		Intent:        string(result.Intent),
		Answers:       result.Answers,
		PendingPlanID: result.PendingPlanID,
	})
	sess.AddMessage("user", content)
	sess.AddMessage("assistant", result.Envelope.Text)
	if err := r.sessions.Save(sess); err != nil {
		slog.Warn("session save failed", "session_key", channel+":"+chatID, "error", err)
	}

	return result.Envelope, nil
}

// ProcessDirect processes a message for the CLI session.
func (r *Runner) ProcessDirect(ctx context.Context, content string) (string, error) {
	env, err := r.ProcessForChannel(ctx, "cli", "direct", "user", content)
	if err != nil {
		return "", err
	}
	return env.Text, nil
}
