package ws

import (
	"encoding/json"
	"time"

	"github.com/ymatsuda/bookmates-backend/internal/model"
)

// Event types - client -> server
const (
	EventTypeConversationOpen  = "conversation.open"
	EventTypeConversationClose = "conversation.close"
	EventTypeMessageSend       = "message.send"
	EventTypePing              = "ping"
)

// Event types - server -> client
const (
	EventTypeConversationHistory = "conversation.history"
	EventTypeMessageNew          = "message.new"
	EventTypeMessageAck          = "message.ack"
	EventTypeUnreadBadge         = "unread.badge"
	EventTypePong                = "pong"
	EventTypeError               = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- client -> server payloads ---

type ConversationOpenPayload struct {
	PartnerUID string `json:"partner_uid"`
}

type MessageSendPayload struct {
	ReceiverUID string  `json:"receiver_uid"`
	ListingID   *uint64 `json:"listing_id,omitempty"`
	Content     string  `json:"content"`
	// Nonce is echoed back on ack/error so the client can match the
	// outcome to its pending input.
	Nonce string `json:"nonce,omitempty"`
}

// --- server -> client payloads ---

type ConversationHistoryPayload struct {
	PartnerUID string          `json:"partner_uid"`
	Messages   []model.Message `json:"messages"`
}

type MessagePayload struct {
	model.Message
}

type MessageAckPayload struct {
	Nonce     string `json:"nonce,omitempty"`
	MessageID uint64 `json:"message_id"`
}

type UnreadBadgePayload struct {
	Count int64 `json:"count"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Nonce   string `json:"nonce,omitempty"`
}

// NewEvent creates a server->client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
