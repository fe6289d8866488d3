package store

import (
	"context"
	"errors"

	"messaging-service/internal/models"
)

// ErrNotFound is returned when a conversation or message does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary for the messaging subsystem. Two backends
// conform: the in-process memory store (single instance only) and the
// Postgres store (the only mode safe for multiple server instances). Business
// logic never branches on the backend.
type Store interface {
	// Conversations.
	CreateConversation(ctx context.Context, conv models.Conversation) error
	GetConversation(ctx context.Context, id string) (models.Conversation, error)
	FindDirectConversation(ctx context.Context, a, b string) (models.Conversation, error)
	ListConversations(ctx context.Context, identity string, limit, offset int) ([]models.Conversation, error)
	// UpdateConversation replaces group settings guarded by the version the
	// caller read; it reports false when another writer got there first, so
	// callers reload and retry instead of clobbering the concurrent write.
	UpdateConversation(ctx context.Context, conv models.Conversation) (bool, error)
	// AddParticipant and RemoveParticipant mutate the membership set in a
	// single conditional step. They report false without error when the
	// condition did not hold: identity already present or the cap reached on
	// add, identity absent, owner, or the floor reached on remove.
	AddParticipant(ctx context.Context, id, identity string, limit int) (bool, error)
	RemoveParticipant(ctx context.Context, id, identity string, floor int) (bool, error)
	// UpdateRequestState conditionally transitions a direct conversation and
	// reports whether a row moved. The condition makes concurrent transitions
	// race-safe without a caller-side read-modify-write.
	UpdateRequestState(ctx context.Context, id string, from []string, to, blockedBy string) (bool, error)
	TouchConversation(ctx context.Context, id string) error
	PurgeConversations(ctx context.Context) (int64, error)

	// Messages.
	AppendMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (models.Message, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error)
	AddDelivered(ctx context.Context, messageID, recipient string) (bool, error)
	MarkConversationRead(ctx context.Context, conversationID, reader string) error
	ToggleReaction(ctx context.Context, messageID, emoji, actor string) (added bool, err error)

	// Block edges.
	AddBlock(ctx context.Context, blocker, blocked string) error
	RemoveBlock(ctx context.Context, blocker, blocked string) (bool, error)
	HasBlock(ctx context.Context, blocker, blocked string) (bool, error)
	BlockedIdentities(ctx context.Context, viewer string) ([]string, error)

	// Follow edges, written by the platform's social surface; read here to
	// decide the initial direct-request state.
	AddFollow(ctx context.Context, follower, followee string) error
	Follows(ctx context.Context, follower, followee string) (bool, error)

	// Encryption public keys, stored opaque.
	SetPublicKey(ctx context.Context, identity, keyData string) error
	GetPublicKey(ctx context.Context, identity string) (string, error)
}
