package poller

import (
	"context"
	"strings"
	"time"

	"salesbot/app/client/greenapi"
	"salesbot/app/service/dedup"
	"salesbot/app/util/clock"

	"github.com/elliotchance/pie/v2"
)

// Source is one way of pulling inbound traffic for a session.
type Source interface {
	Fetch(ctx context.Context) ([]Event, error)
	// Ack marks an event as handled so that it is not fetched again.
	Ack(ctx context.Context, e Event) error
}

type NotificationGateway interface {
	ReceiveNotification(ctx context.Context, timeout time.Duration) (*greenapi.Notification, error)
	DeleteNotification(ctx context.Context, receiptID int64) error
}

type JournalGateway interface {
	LastIncomingMessages(ctx context.Context, minutes int) ([]greenapi.JournalMessage, error)
}

// JournalSource pulls the recent incoming messages journal. The journal is not
// consumable on the gateway side, so acknowledged ids are remembered locally
// and messages older than the session start are skipped.
type JournalSource struct {
	gateway  JournalGateway
	clk      clock.Clock
	minutes  int
	interval time.Duration
	since    time.Time
	consumed *dedup.RecentIDs
	polled   bool
}

func NewJournalSource(gateway JournalGateway, clk clock.Clock, minutes int, interval time.Duration, since time.Time, remember int) *JournalSource {
	return &JournalSource{
		gateway:  gateway,
		clk:      clk,
		minutes:  minutes,
		interval: interval,
		since:    since,
		consumed: dedup.NewRecentIDs(remember),
	}
}

func (s *JournalSource) Fetch(ctx context.Context) ([]Event, error) {
	if s.polled {
		s.clk.Sleep(s.interval)
	}
	s.polled = true

	messages, err := s.gateway.LastIncomingMessages(ctx, s.minutes)
	if err != nil {
		return nil, err
	}

	fresh := pie.Filter(messages, func(m greenapi.JournalMessage) bool {
		return m.Timestamp > s.since.Unix() && !s.consumed.Contains(m.IDMessage)
	})

	fresh = pie.SortStableUsing(fresh, func(a, b greenapi.JournalMessage) bool {
		return a.Timestamp < b.Timestamp
	})

	return pie.Map(fresh, journalEvent), nil
}

func (s *JournalSource) Ack(_ context.Context, e Event) error {
	s.consumed.Add(e.MessageID)
	return nil
}

func journalEvent(m greenapi.JournalMessage) Event {
	chatID := m.SenderID
	if chatID == "" {
		chatID = m.ChatID
	}
	if chatID == "" && strings.TrimSpace(m.SenderName) != "" {
		chatID = strings.TrimSpace(m.SenderName) + "@c.us"
	}

	incoming := (m.Type == "" || m.Type == "incoming") &&
		m.TypeMessage != "outgoing" && m.TypeMessage != "outgoingAPIMessage"

	return Event{
		Webhook:   greenapi.WebhookIncoming,
		Incoming:  incoming,
		Text:      m.Text(),
		ChatID:    chatID,
		MessageID: m.IDMessage,
		Timestamp: time.Unix(m.Timestamp, 0),
	}
}
