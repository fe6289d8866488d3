package models

import "time"

// CiphertextPrefix marks an end-to-end encrypted body. Bodies carrying it are
// stored byte-exact and never trimmed or filtered.
const CiphertextPrefix = "cipher:v1:"

// Message is an immutable ledger entry; only the delivery, read and reaction
// sets mutate after append.
type Message struct {
	ID             string              `db:"id" json:"id"`
	ConversationID string              `db:"conversation_id" json:"conversation_id"`
	Sender         string              `db:"sender" json:"sender"`
	Body           string              `db:"body" json:"body"`
	Seq            int64               `db:"seq" json:"-"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	DeliveredTo    []string            `json:"delivered_to"`
	ReadBy         []string            `json:"read_by"`
	Reactions      map[string][]string `json:"reactions"`
}

// IsCiphertext reports whether the body carries the ciphertext marker.
func (m *Message) IsCiphertext() bool {
	return len(m.Body) >= len(CiphertextPrefix) && m.Body[:len(CiphertextPrefix)] == CiphertextPrefix
}

// DeliveredToContains reports whether the recipient already acked delivery.
func (m *Message) DeliveredToContains(identity string) bool {
	return contains(m.DeliveredTo, identity)
}

// ReadByContains reports whether the reader already acked the message.
func (m *Message) ReadByContains(identity string) bool {
	return contains(m.ReadBy, identity)
}
