package notify

import (
	"context"
	"log"
	"time"
)

// Envelope is the notification event consumed by the mailer.
type Envelope struct {
	SchemaVersion int     `json:"schema_version"`
	EventType     string  `json:"event_type"`
	OccurredAt    string  `json:"occurred_at"`
	Service       string  `json:"service"`
	Recipient     string  `json:"recipient"`
	Payload       Payload `json:"payload"`
}

// Payload carries the notification body.
type Payload struct {
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender"`
	Kind           string `json:"kind"`
}

// Emitter sends fire-and-forget email-notification events. Failures are
// logged and never propagate to the caller.
type Emitter struct {
	publisher  Publisher
	routingKey string
	service    string
}

// NewEmitter builds an Emitter.
func NewEmitter(publisher Publisher, routingKey, service string) *Emitter {
	return &Emitter{publisher: publisher, routingKey: routingKey, service: service}
}

// MessageReceived announces a new message to each recipient's mailer queue.
func (e *Emitter) MessageReceived(ctx context.Context, recipients []string, conversationID, sender, kind string) {
	if e == nil || e.publisher == nil {
		return
	}
	for _, recipient := range recipients {
		if recipient == sender {
			continue
		}
		envelope := Envelope{
			SchemaVersion: 1,
			EventType:     "message_received",
			OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
			Service:       e.service,
			Recipient:     recipient,
			Payload: Payload{
				ConversationID: conversationID,
				Sender:         sender,
				Kind:           kind,
			},
		}
		if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
			log.Printf("notify emit failed recipient=%s: %v", recipient, err)
		}
	}
}
