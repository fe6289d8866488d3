package models

// Event types sent over websocket connections.
const (
	EventHello               = "hello"
	EventPong                = "pong"
	EventMessageNew          = "message:new"
	EventMessageDelivered    = "message:delivered"
	EventConversationRead    = "conversation:read"
	EventConversationUpdated = "conversation:updated"
)

// Event is the outbound websocket frame envelope.
type Event struct {
	Type           string        `json:"type"`
	OK             bool          `json:"ok,omitempty"`
	TS             int64         `json:"ts,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
	MessageID      string        `json:"messageId,omitempty"`
	By             string        `json:"by,omitempty"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	Message        *Message      `json:"message,omitempty"`
}

// Frame is the inbound websocket frame shape.
type Frame struct {
	Type           string `json:"type"`
	MessageID      string `json:"messageId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}
