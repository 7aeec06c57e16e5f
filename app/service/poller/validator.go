package poller

import (
	"strings"
)

// Validator accepts only inbound text messages from the contact a session is
// bound to.
type Validator struct {
	botID string
	bound string
}

// NewValidator takes the gateway instance id and the session's chat identity.
func NewValidator(botID, bound string) Validator {
	return Validator{
		botID: botID,
		bound: bound,
	}
}

// Validate returns the accepted message, or a rejection reason.
func (v Validator) Validate(e Event) (Message, string, bool) {
	if !e.Incoming {
		return Message{}, "not_incoming", false
	}

	text := strings.TrimSpace(e.Text)
	if text == "" {
		return Message{}, "no_text", false
	}

	if e.ChatID == "" {
		return Message{}, "no_chat_id", false
	}

	if v.isBot(e.ChatID) {
		return Message{}, "from_bot", false
	}

	if e.ChatID != v.bound {
		return Message{}, "other_chat", false
	}

	return Message{
		ChatID:     e.ChatID,
		Text:       text,
		ID:         e.MessageID,
		ReceivedAt: e.Timestamp,
	}, "", true
}

func (v Validator) isBot(chatID string) bool {
	if v.botID == "" {
		return false
	}

	return chatID == v.botID+"@c.us" || strings.Contains(chatID, v.botID)
}
