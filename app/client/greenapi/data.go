package greenapi

import "strings"

const (
	WebhookIncoming    = "incomingMessageReceived"
	WebhookOutgoing    = "outgoingMessageReceived"
	WebhookOutgoingAPI = "outgoingAPIMessageReceived"
)

type Notification struct {
	ReceiptID int64            `json:"receiptId"`
	Body      NotificationBody `json:"body"`
}

type NotificationBody struct {
	TypeWebhook  string       `json:"typeWebhook"`
	IDMessage    string       `json:"idMessage"`
	Timestamp    int64        `json:"timestamp"`
	InstanceData InstanceData `json:"instanceData"`
	SenderData   SenderData   `json:"senderData"`
	MessageData  MessageData  `json:"messageData"`
}

type InstanceData struct {
	IDInstance int64  `json:"idInstance"`
	Wid        string `json:"wid"`
}

type SenderData struct {
	ChatID     string `json:"chatId"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
}

type MessageData struct {
	TypeMessage             string                   `json:"typeMessage"`
	TextMessageData         *TextMessageData         `json:"textMessageData,omitempty"`
	ExtendedTextMessageData *ExtendedTextMessageData `json:"extendedTextMessageData,omitempty"`
}

type TextMessageData struct {
	TextMessage string `json:"textMessage"`
}

type ExtendedTextMessageData struct {
	Text string `json:"text"`
}

// Text returns the plain or extended text body, if any.
func (m MessageData) Text() string {
	if m.TextMessageData != nil && m.TextMessageData.TextMessage != "" {
		return m.TextMessageData.TextMessage
	}
	if m.ExtendedTextMessageData != nil {
		return m.ExtendedTextMessageData.Text
	}
	return ""
}

// Incoming is false for echoes of messages sent from the phone or the API.
func (b NotificationBody) Incoming() bool {
	if b.TypeWebhook != WebhookIncoming {
		return false
	}

	switch b.MessageData.TypeMessage {
	case "outgoing", "outgoingAPIMessage":
		return false
	}

	return true
}

// FromAPI reports whether the notification echoes a message sent through the API.
func (b NotificationBody) FromAPI() bool {
	return b.TypeWebhook == WebhookOutgoingAPI
}

// SenderIdentity resolves the chat identity, trying sender, then chatId, then
// senderName.
func (b NotificationBody) SenderIdentity() string {
	switch {
	case b.SenderData.Sender != "":
		return b.SenderData.Sender
	case b.SenderData.ChatID != "":
		return b.SenderData.ChatID
	case strings.TrimSpace(b.SenderData.SenderName) != "":
		return strings.TrimSpace(b.SenderData.SenderName) + "@c.us"
	}
	return ""
}

// JournalMessage is one entry of lastIncomingMessages.
type JournalMessage struct {
	Type                string                   `json:"type"`
	IDMessage           string                   `json:"idMessage"`
	Timestamp           int64                    `json:"timestamp"`
	TypeMessage         string                   `json:"typeMessage"`
	ChatID              string                   `json:"chatId"`
	SenderID            string                   `json:"senderId"`
	SenderName          string                   `json:"senderName"`
	TextMessage         string                   `json:"textMessage"`
	ExtendedTextMessage *ExtendedTextMessageData `json:"extendedTextMessage,omitempty"`
}

func (m JournalMessage) Text() string {
	if m.TextMessage != "" {
		return m.TextMessage
	}
	if m.ExtendedTextMessage != nil {
		return m.ExtendedTextMessage.Text
	}
	return ""
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type sendMessageResponse struct {
	IDMessage string `json:"idMessage"`
}

type deleteNotificationResponse struct {
	Result bool `json:"result"`
}
