package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"salesbot/app/client/greenapi"
	"salesbot/app/util/clock"

	"github.com/samber/oops"
)

const (
	drainLimit   = 100
	drainTimeout = time.Second
	inboxWait    = time.Second
)

var ErrChatSubscribed = errors.New("chat already has an inbox")

// Pump is the only consumer of a gateway notification queue. Every
// notification is routed to the inbox of the chat it came from and deleted
// from the queue afterwards, whether a session wanted it or not.
type Pump struct {
	gateway      NotificationGateway
	clk          clock.Clock
	timeout      time.Duration
	backoff      time.Duration
	drainOnStart bool

	mu      sync.Mutex
	inboxes map[string]*Inbox
}

func NewPump(gateway NotificationGateway, clk clock.Clock, timeout, backoff time.Duration, drainOnStart bool) *Pump {
	return &Pump{
		gateway:      gateway,
		clk:          clk,
		timeout:      timeout,
		backoff:      backoff,
		drainOnStart: drainOnStart,
		inboxes:      make(map[string]*Inbox),
	}
}

// Subscribe opens the inbox for chatID. A chat has at most one inbox.
func (p *Pump) Subscribe(chatID string) (*Inbox, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inboxes[chatID]; ok {
		return nil, oops.In("poller").With("chat_id", chatID).Wrap(ErrChatSubscribed)
	}

	inbox := newInbox(inboxWait)
	p.inboxes[chatID] = inbox

	return inbox, nil
}

// Unsubscribe closes inbox and detaches it if it is still the one bound to chatID.
func (p *Pump) Unsubscribe(chatID string, inbox *Inbox) {
	p.mu.Lock()
	if p.inboxes[chatID] == inbox {
		delete(p.inboxes, chatID)
	}
	p.mu.Unlock()

	inbox.Close()
}

func (p *Pump) lookup(chatID string) *Inbox {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.inboxes[chatID]
}

// Run drains stale notifications once, then pumps until ctx is done.
func (p *Pump) Run(ctx context.Context) error {
	if p.drainOnStart {
		n, err := p.Drain(ctx)
		if err != nil {
			slog.Warn("Failed to drain stale notifications", "error", err)
		} else if n > 0 {
			slog.Info("Drained stale notifications", "count", n)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := p.PumpOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			slog.Warn("Error receiving notification", "error", err)
			p.clk.Sleep(p.backoff)
		}
	}
}

// PumpOnce receives at most one notification, hands it to its inbox and
// deletes it. Only a receive failure is returned.
func (p *Pump) PumpOnce(ctx context.Context) error {
	n, err := p.gateway.ReceiveNotification(ctx, p.timeout)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}

	e := notificationEvent(n)
	if inbox := p.lookup(e.ChatID); inbox != nil {
		inbox.push(e)
	} else {
		slog.Debug("Notification without session", "chat_id", e.ChatID, "webhook", e.Webhook)
	}

	if err = p.gateway.DeleteNotification(ctx, n.ReceiptID); err != nil {
		slog.Warn("Failed to delete notification",
			"receipt_id", n.ReceiptID,
			"id_message", e.MessageID,
			"error", err,
		)
	}

	return nil
}

// Drain deletes up to drainLimit queued notifications without routing them.
func (p *Pump) Drain(ctx context.Context) (int, error) {
	drained := 0

	for drained < drainLimit {
		n, err := p.gateway.ReceiveNotification(ctx, drainTimeout)
		if err != nil {
			return drained, err
		}
		if n == nil {
			break
		}

		if err = p.gateway.DeleteNotification(ctx, n.ReceiptID); err != nil {
			return drained, err
		}
		drained++
	}

	return drained, nil
}

// Inbox is the Source of one session in notification mode. The pump pushes
// events in, the session loop takes them out.
type Inbox struct {
	wait time.Duration

	mu      sync.Mutex
	pending []Event
	closed  bool

	signal chan struct{}
	done   chan struct{}
}

func newInbox(wait time.Duration) *Inbox {
	return &Inbox{
		wait:   wait,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (i *Inbox) push(e Event) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.pending = append(i.pending, e)
	i.mu.Unlock()

	select {
	case i.signal <- struct{}{}:
	default:
	}
}

func (i *Inbox) take() []Event {
	i.mu.Lock()
	defer i.mu.Unlock()

	events := i.pending
	i.pending = nil

	return events
}

// Fetch returns pending events, waiting up to the inbox wait for the first one.
// It returns immediately once the inbox is closed.
func (i *Inbox) Fetch(ctx context.Context) ([]Event, error) {
	if events := i.take(); len(events) > 0 {
		return events, nil
	}

	timer := time.NewTimer(i.wait)
	defer timer.Stop()

	select {
	case <-i.signal:
	case <-i.done:
	case <-timer.C:
	case <-ctx.Done():
	}

	return i.take(), nil
}

// Ack is a no-op: the pump already deleted the notification.
func (i *Inbox) Ack(context.Context, Event) error {
	return nil
}

func (i *Inbox) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.closed {
		i.closed = true
		close(i.done)
	}
}

func notificationEvent(n *greenapi.Notification) Event {
	e := Event{
		ReceiptID: n.ReceiptID,
		Webhook:   n.Body.TypeWebhook,
		Incoming:  n.Body.Incoming(),
		FromAPI:   n.Body.FromAPI(),
		Text:      n.Body.MessageData.Text(),
		ChatID:    n.Body.SenderIdentity(),
		MessageID: n.Body.IDMessage,
	}
	if n.Body.Timestamp > 0 {
		e.Timestamp = time.Unix(n.Body.Timestamp, 0)
	}

	return e
}
