package messages

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/blocks"
	"messaging-service/internal/conversations"
	"messaging-service/internal/models"
	"messaging-service/internal/store"
)

const maxEmojiRunes = 8

// Ledger is the per-conversation ordered message log with delivery, read and
// reaction tracking. Every write runs its permission checks before mutating
// anything.
type Ledger struct {
	store    store.Store
	registry *blocks.Registry
	convs    *conversations.Service
	filter   *Filter
}

// NewLedger builds the ledger.
func NewLedger(s store.Store, registry *blocks.Registry, convs *conversations.Service, filter *Filter) *Ledger {
	if filter == nil {
		filter = NewFilter(DefaultMaxBodyLen, nil)
	}
	return &Ledger{store: s, registry: registry, convs: convs, filter: filter}
}

// Append validates send permission and appends a message. Plaintext bodies
// are trimmed and content-filtered; ciphertext-marker bodies are stored
// verbatim. The conversation's updatedAt is bumped so lists order by recency.
func (l *Ledger) Append(ctx context.Context, conversationID, sender, body string) (models.Message, models.Conversation, error) {
	conv, err := l.convs.Get(ctx, conversationID, sender)
	if err != nil {
		return models.Message{}, models.Conversation{}, err
	}

	switch conv.Kind {
	case models.KindDirect:
		if !conv.CanSendDirect(sender) {
			if conv.RequestState == models.StateBlocked && conv.BlockedBy != sender {
				// The blocked party must not learn the block exists.
				return models.Message{}, models.Conversation{}, apperrors.New(apperrors.NotFound, "conversation not found")
			}
			return models.Message{}, models.Conversation{}, apperrors.New(apperrors.PermissionDenied, "sending is not allowed in this conversation")
		}
	case models.KindGroup:
		if !conv.CanPost(sender) {
			return models.Message{}, models.Conversation{}, apperrors.New(apperrors.PermissionDenied, "posting is not allowed in this group")
		}
	}

	if !strings.HasPrefix(body, models.CiphertextPrefix) {
		body = l.filter.Apply(body)
	}
	if body == "" {
		return models.Message{}, models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "empty message body")
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         sender,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
		ReadBy:         []string{sender},
		DeliveredTo:    []string{},
		Reactions:      map[string][]string{},
	}
	if err := l.store.AppendMessage(ctx, &msg); err != nil {
		return models.Message{}, models.Conversation{}, err
	}
	if err := l.store.TouchConversation(ctx, conversationID); err != nil {
		return models.Message{}, models.Conversation{}, err
	}
	conv, err = l.store.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Message{}, models.Conversation{}, err
	}
	return msg, conv, nil
}

// MarkDelivered records a delivery receipt. It is an idempotent no-op unless
// the recipient is a non-sender participant and the pair is not
// block-suppressed. Returns the message and whether anything changed.
func (l *Ledger) MarkDelivered(ctx context.Context, messageID, recipient string) (models.Message, bool, error) {
	msg, err := l.store.GetMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Message{}, false, apperrors.New(apperrors.NotFound, "message not found")
	}
	if err != nil {
		return models.Message{}, false, err
	}
	conv, err := l.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return models.Message{}, false, err
	}
	if !conv.HasParticipant(recipient) || recipient == msg.Sender {
		return msg, false, nil
	}
	if suppressed, err := l.registry.IsBlockedForViewer(ctx, msg.Sender, recipient); err != nil {
		return models.Message{}, false, err
	} else if suppressed {
		return msg, false, nil
	}
	changed, err := l.store.AddDelivered(ctx, messageID, recipient)
	if err != nil {
		return models.Message{}, false, err
	}
	if changed {
		msg, err = l.store.GetMessage(ctx, messageID)
		if err != nil {
			return models.Message{}, false, err
		}
	}
	return msg, changed, nil
}

// MarkRead is a bulk, conversation-wide read receipt: every message not sent
// by the reader gains the reader in its readBy set. Idempotent.
func (l *Ledger) MarkRead(ctx context.Context, conversationID, reader string) error {
	if _, err := l.convs.Get(ctx, conversationID, reader); err != nil {
		return err
	}
	return l.store.MarkConversationRead(ctx, conversationID, reader)
}

// ToggleReaction flips the actor's membership in the emoji's reaction set.
// Applying it twice restores the prior state.
func (l *Ledger) ToggleReaction(ctx context.Context, messageID, actor, emoji string) (models.Message, error) {
	if !validEmoji(emoji) {
		return models.Message{}, apperrors.New(apperrors.InvalidRequest, "invalid emoji")
	}
	msg, err := l.store.GetMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Message{}, apperrors.New(apperrors.NotFound, "message not found")
	}
	if err != nil {
		return models.Message{}, err
	}
	if _, err := l.convs.Get(ctx, msg.ConversationID, actor); err != nil {
		return models.Message{}, err
	}
	if actor != msg.Sender {
		if suppressed, err := l.registry.IsBlockedForViewer(ctx, msg.Sender, actor); err != nil {
			return models.Message{}, err
		} else if suppressed {
			isBlocker, err := l.registry.IsBlockedByViewer(ctx, msg.Sender, actor)
			if err != nil {
				return models.Message{}, err
			}
			if !isBlocker {
				return models.Message{}, apperrors.New(apperrors.NotFound, "message not found")
			}
			return models.Message{}, apperrors.New(apperrors.PermissionDenied, "interaction is blocked")
		}
	}
	if _, err := l.store.ToggleReaction(ctx, messageID, emoji, actor); err != nil {
		return models.Message{}, err
	}
	return l.store.GetMessage(ctx, messageID)
}

// List returns a newest-first page of the conversation's messages as seen by
// the viewer. Messages from block-suppressed senders are filtered out of the
// view only; the ledger itself is untouched, so a later unblock reveals the
// same historical messages.
func (l *Ledger) List(ctx context.Context, conversationID, viewer string, limit, offset int) ([]models.Message, error) {
	if _, err := l.convs.Get(ctx, conversationID, viewer); err != nil {
		return nil, err
	}
	msgs, err := l.store.ListMessages(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	gate, err := l.registry.GateFor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	visible := make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Sender != viewer && gate.Suppressed(msg.Sender) {
			continue
		}
		visible = append(visible, msg)
	}
	return visible, nil
}

func validEmoji(emoji string) bool {
	runes := []rune(emoji)
	if len(runes) == 0 || len(runes) > maxEmojiRunes {
		return false
	}
	for _, r := range runes {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
