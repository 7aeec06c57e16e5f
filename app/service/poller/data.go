package poller

import "time"

// Event is one raw item fetched from the gateway, already mapped to a common
// shape. Whether it is worth handling is decided by the Validator.
type Event struct {
	ReceiptID int64
	Webhook   string
	Incoming  bool
	FromAPI   bool
	Text      string
	ChatID    string
	MessageID string
	Timestamp time.Time
}

// Message is an accepted inbound message bound to a session.
type Message struct {
	ChatID     string
	Text       string
	ID         string
	ReceivedAt time.Time
}
