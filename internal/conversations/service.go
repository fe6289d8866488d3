package conversations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/blocks"
	"messaging-service/internal/identity"
	"messaging-service/internal/models"
	"messaging-service/internal/movements"
	"messaging-service/internal/store"
)

// Service owns the direct-conversation lifecycle and group membership rules.
type Service struct {
	store     store.Store
	registry  *blocks.Registry
	directory movements.Directory
}

// NewService builds the conversation service.
func NewService(s store.Store, registry *blocks.Registry, directory movements.Directory) *Service {
	return &Service{store: s, registry: registry, directory: directory}
}

// VisibleTo reports whether the viewer may observe the conversation at all. A
// conversation suppressed by a block edge is indistinguishable from a
// non-existent one unless the viewer is the blocker.
func VisibleTo(conv *models.Conversation, gate *blocks.Gate, viewerIsBlocker func(peer string) bool) bool {
	if !conv.HasParticipant(gate.Viewer()) {
		return false
	}
	if conv.Kind != models.KindDirect {
		return true
	}
	peer := conv.Peer(gate.Viewer())
	if !gate.Suppressed(peer) {
		return true
	}
	return viewerIsBlocker(peer)
}

// resolveViewer loads a conversation and applies the visibility rule,
// returning NotFound for anything the viewer must not learn exists.
func (s *Service) resolveViewer(ctx context.Context, id, viewer string) (models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Conversation{}, apperrors.New(apperrors.NotFound, "conversation not found")
	}
	if err != nil {
		return models.Conversation{}, err
	}
	if !conv.HasParticipant(viewer) {
		return models.Conversation{}, apperrors.New(apperrors.NotFound, "conversation not found")
	}
	if conv.Kind == models.KindDirect {
		peer := conv.Peer(viewer)
		suppressed, err := s.registry.IsBlockedForViewer(ctx, peer, viewer)
		if err != nil {
			return models.Conversation{}, err
		}
		if suppressed {
			isBlocker, err := s.registry.IsBlockedByViewer(ctx, peer, viewer)
			if err != nil {
				return models.Conversation{}, err
			}
			if !isBlocker {
				return models.Conversation{}, apperrors.New(apperrors.NotFound, "conversation not found")
			}
		}
	}
	return conv, nil
}

// Get returns the conversation as seen by the viewer.
func (s *Service) Get(ctx context.Context, id, viewer string) (models.Conversation, error) {
	return s.resolveViewer(ctx, id, viewer)
}

// List returns the viewer's conversations ordered by recency, with
// block-suppressed direct conversations filtered out.
func (s *Service) List(ctx context.Context, viewer string, limit, offset int) ([]models.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, viewer, limit, offset)
	if err != nil {
		return nil, err
	}
	gate, err := s.registry.GateFor(ctx, viewer)
	if err != nil {
		return nil, err
	}
	result := make([]models.Conversation, 0, len(convs))
	for i := range convs {
		conv := convs[i]
		visible := VisibleTo(&conv, gate, func(peer string) bool {
			isBlocker, blockErr := s.registry.IsBlockedByViewer(ctx, peer, viewer)
			if blockErr != nil {
				return false
			}
			return isBlocker
		})
		if visible {
			result = append(result, conv)
		}
	}
	return result, nil
}

// StartDirect creates a direct conversation lazily on first contact, or
// returns the existing one for the unordered pair. Initial state is accepted
// when the requester already follows the peer, otherwise pending.
func (s *Service) StartDirect(ctx context.Context, actor, peer string, encrypted bool) (models.Conversation, error) {
	peer = identity.Normalize(peer)
	if peer == "" || peer == actor {
		return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "invalid peer")
	}

	if suppressed, err := s.registry.IsBlockedForViewer(ctx, peer, actor); err != nil {
		return models.Conversation{}, err
	} else if suppressed {
		isBlocker, err := s.registry.IsBlockedByViewer(ctx, peer, actor)
		if err != nil {
			return models.Conversation{}, err
		}
		if isBlocker {
			return models.Conversation{}, apperrors.New(apperrors.PermissionDenied, "you have blocked this identity")
		}
		// Never reveal that the peer blocked the actor.
		return models.Conversation{}, apperrors.New(apperrors.NotFound, "identity not found")
	}

	if existing, err := s.store.FindDirectConversation(ctx, actor, peer); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Conversation{}, err
	}

	if encrypted {
		if _, err := s.store.GetPublicKey(ctx, peer); errors.Is(err, store.ErrNotFound) {
			return models.Conversation{}, apperrors.New(apperrors.Conflict, "peer has no public key")
		} else if err != nil {
			return models.Conversation{}, err
		}
	}

	state := models.StatePending
	if follows, err := s.store.Follows(ctx, actor, peer); err != nil {
		return models.Conversation{}, err
	} else if follows {
		state = models.StateAccepted
	}

	now := time.Now().UTC()
	conv := models.Conversation{
		ID:           uuid.NewString(),
		Kind:         models.KindDirect,
		Participants: []string{actor, peer},
		RequestState: state,
		Requester:    actor,
		Encrypted:    encrypted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return models.Conversation{}, err
	}
	// A concurrent starter may have won the unique-pair race; the stored row
	// is authoritative either way.
	return s.store.FindDirectConversation(ctx, actor, peer)
}

// Accept moves a pending request to accepted. Recipient only.
func (s *Service) Accept(ctx context.Context, id, actor string) (models.Conversation, error) {
	return s.transition(ctx, id, actor, []string{models.StatePending}, models.StateAccepted, "")
}

// Decline moves a pending request to declined, a terminal state: a later
// message attempt from the requester must not silently reopen it.
func (s *Service) Decline(ctx context.Context, id, actor string) (models.Conversation, error) {
	return s.transition(ctx, id, actor, []string{models.StatePending}, models.StateDeclined, "")
}

// Block moves any state to blocked, records who blocked, and writes the
// directed block edge so suppression reaches every read path.
func (s *Service) Block(ctx context.Context, id, actor string) (models.Conversation, error) {
	conv, err := s.transition(ctx, id, actor,
		[]string{models.StatePending, models.StateAccepted, models.StateDeclined, models.StateBlocked},
		models.StateBlocked, actor)
	if err != nil {
		return models.Conversation{}, err
	}
	if err := s.registry.Block(ctx, actor, conv.Peer(actor)); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Unblock reverses a block by its blocker, restoring the accepted state and
// removing the edge. Historical messages become visible again; nothing is
// recreated.
func (s *Service) Unblock(ctx context.Context, id, actor string) (models.Conversation, error) {
	conv, err := s.resolveViewer(ctx, id, actor)
	if err != nil {
		return models.Conversation{}, err
	}
	if conv.Kind != models.KindDirect || conv.RequestState != models.StateBlocked {
		return models.Conversation{}, apperrors.New(apperrors.Conflict, "conversation is not blocked")
	}
	if conv.BlockedBy != actor {
		return models.Conversation{}, apperrors.New(apperrors.PermissionDenied, "only the blocker may unblock")
	}
	if err := s.registry.Unblock(ctx, actor, conv.Peer(actor)); err != nil && !apperrors.Is(err, apperrors.NotFound) {
		return models.Conversation{}, err
	}
	if _, err := s.store.UpdateRequestState(ctx, id, []string{models.StateBlocked}, models.StateAccepted, ""); err != nil {
		return models.Conversation{}, err
	}
	return s.store.GetConversation(ctx, id)
}

func (s *Service) transition(ctx context.Context, id, actor string, from []string, to, blockedBy string) (models.Conversation, error) {
	conv, err := s.resolveViewer(ctx, id, actor)
	if err != nil {
		return models.Conversation{}, err
	}
	if conv.Kind != models.KindDirect {
		return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "not a direct conversation")
	}
	if actor == conv.Requester {
		return models.Conversation{}, apperrors.New(apperrors.PermissionDenied, "only the recipient may do this")
	}
	moved, err := s.store.UpdateRequestState(ctx, id, from, to, blockedBy)
	if err != nil {
		return models.Conversation{}, err
	}
	if !moved {
		return models.Conversation{}, apperrors.New(apperrors.Conflict, "conversation is not in a valid state for this action")
	}
	return s.store.GetConversation(ctx, id)
}

// Participants returns the full participant set of a conversation, for
// fan-out targeting. Broadcasts go to every participant's live connections.
func (s *Service) Participants(ctx context.Context, id string) ([]string, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.NotFound, "conversation not found")
	}
	if err != nil {
		return nil, err
	}
	return conv.Participants, nil
}

// Purge removes every conversation and its messages. Administrative only;
// this is the sole hard-delete path in the system.
func (s *Service) Purge(ctx context.Context) (int64, error) {
	return s.store.PurgeConversations(ctx)
}
