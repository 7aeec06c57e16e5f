package dispatch

import (
	"context"
	"log/slog"
	"time"

	"salesbot/app/service/transcript"
	"salesbot/app/util/clock"

	"github.com/samber/oops"
)

type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) (string, error)
}

type Suppressor interface {
	ShouldSend(chatID, text string) bool
	RecordSent(chatID, text string)
}

type Journal interface {
	Append(chatID string, entry transcript.Entry) error
}

// Dispatcher paces outbound messages and drops repeats.
type Dispatcher struct {
	clk     clock.Clock
	sender  Sender
	filter  Suppressor
	journal Journal
}

// New builds a dispatcher. journal may be nil.
func New(clk clock.Clock, sender Sender, filter Suppressor, journal Journal) *Dispatcher {
	return &Dispatcher{
		clk:     clk,
		sender:  sender,
		filter:  filter,
		journal: journal,
	}
}

// Send waits delay, then delivers text unless the same text went out within
// the outbound window. It reports whether the gateway was called.
func (d *Dispatcher) Send(ctx context.Context, chatID, text string, delay time.Duration) (bool, error) {
	d.clk.Sleep(delay)

	if !d.filter.ShouldSend(chatID, text) {
		slog.Debug("Duplicate outbound message suppressed", "chat_id", chatID, "text", text)
		return false, nil
	}

	id, err := d.sender.SendMessage(ctx, chatID, text)
	if err != nil {
		return true, oops.In("dispatch").With("chat_id", chatID).Wrapf(err, "failed to send message")
	}

	d.filter.RecordSent(chatID, text)

	slog.Info("Sent message", "chat_id", chatID, "id_message", id, "text", text)

	if d.journal != nil {
		if err = d.journal.Append(chatID, transcript.Entry{
			Time:      d.clk.Now(),
			Direction: transcript.DirectionOut,
			Text:      text,
		}); err != nil {
			slog.Warn("Failed to append transcript", "chat_id", chatID, "error", err)
		}
	}

	return true, nil
}
