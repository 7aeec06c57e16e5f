package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"salesbot/app/service/engine"
	"salesbot/app/service/transcript"
)

// PropertyID accepts both JSON strings and numbers.
type PropertyID string

func (p *PropertyID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PropertyID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("objectId must be a string or a number: %w", err)
	}
	*p = PropertyID(n.String())

	return nil
}

type StartRequest struct {
	ChatID   string     `json:"chatId"`
	ObjectID PropertyID `json:"objectId"`
}

type StopRequest struct {
	ChatID string `json:"chatId"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SessionsResponse struct {
	Sessions []engine.Snapshot `json:"sessions"`
}

type StopResponse struct {
	Stopped int `json:"stopped"`
}

type TranscriptResponse struct {
	Entries []transcript.Entry `json:"entries"`
}

type LegacyStartResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
	Session *engine.Snapshot `json:"session,omitempty"`
}

type LegacyStopResponse struct {
	Success bool `json:"success"`
	Stopped int  `json:"stopped"`
}

type LegacyStatusResponse struct {
	IsRunning bool              `json:"isRunning"`
	Sessions  []engine.Snapshot `json:"sessions"`
}

// NormalizeChatID turns a bare phone number into a personal chat identity.
func NormalizeChatID(chatID string) string {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" || strings.Contains(chatID, "@") {
		return chatID
	}

	return strings.TrimPrefix(chatID, "+") + "@c.us"
}
