package models

import "time"

// BlockEdge is a directed suppression of visibility and interaction between
// two identities. Edges are owned independently of conversations and are
// never deleted implicitly.
type BlockEdge struct {
	Blocker   string    `db:"blocker" json:"blocker"`
	Blocked   string    `db:"blocked" json:"blocked"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
