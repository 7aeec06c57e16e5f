package poller

import (
	"context"
	"log/slog"
)

type InboundFilter interface {
	SeenMessageID(id string) bool
	AdmitInbound(ctx context.Context, chatID, text string) bool
}

// Handler processes one accepted message. Its error is logged and never stops
// the cycle.
type Handler func(ctx context.Context, msg Message) error

type Poller struct {
	source    Source
	validator Validator
	filter    InboundFilter
}

func New(source Source, validator Validator, filter InboundFilter) *Poller {
	return &Poller{
		source:    source,
		validator: validator,
		filter:    filter,
	}
}

// RunCycle fetches once and handles the fetched events strictly in order.
// Only a fetch failure is returned.
func (p *Poller) RunCycle(ctx context.Context, handle Handler) error {
	events, err := p.source.Fetch(ctx)
	if err != nil {
		return err
	}

	for _, e := range events {
		p.process(ctx, e, handle)

		if err = p.source.Ack(ctx, e); err != nil {
			slog.Warn("Failed to acknowledge event",
				"receipt_id", e.ReceiptID,
				"id_message", e.MessageID,
				"error", err,
			)
		}
	}

	return nil
}

func (p *Poller) process(ctx context.Context, e Event, handle Handler) {
	msg, reason, ok := p.validator.Validate(e)
	if !ok {
		slog.Debug("Event skipped", "reason", reason, "webhook", e.Webhook, "chat_id", e.ChatID)
		return
	}

	if p.filter.SeenMessageID(msg.ID) {
		slog.Debug("Duplicate message id skipped", "id_message", msg.ID)
		return
	}

	if !p.filter.AdmitInbound(ctx, msg.ChatID, msg.Text) {
		slog.Debug("Duplicate inbound message skipped", "chat_id", msg.ChatID, "text", msg.Text)
		return
	}

	if err := handle(ctx, msg); err != nil {
		slog.Warn("Failed to handle message", "chat_id", msg.ChatID, "error", err)
	}
}
