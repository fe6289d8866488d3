package conversations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/identity"
	"messaging-service/internal/models"
)

// GroupInput describes a new group conversation.
type GroupInput struct {
	Name        string
	AvatarRef   string
	GroupType   string
	MovementRef string
	PostMode    string
	Members     []string
}

// GroupPatch carries partial group-settings changes. Nil fields are left
// untouched.
type GroupPatch struct {
	Name            *string
	AvatarRef       *string
	PostMode        *string
	AdminSet        []string
	PosterAllowlist []string
}

func validPostMode(mode string) bool {
	switch mode {
	case models.PostOwnerOnly, models.PostAdmins, models.PostSelected, models.PostAll:
		return true
	}
	return false
}

// CreateGroup creates a custom group, or derives a verified-participant group
// from a movement's approved-evidence submitters.
func (s *Service) CreateGroup(ctx context.Context, owner string, in GroupInput) (models.Conversation, error) {
	if in.Name == "" {
		return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "group name required")
	}
	if in.PostMode == "" {
		in.PostMode = models.PostAll
	}
	if !validPostMode(in.PostMode) {
		return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "invalid post mode")
	}

	var participants []string
	switch in.GroupType {
	case "", models.GroupCustom:
		in.GroupType = models.GroupCustom
		participants = normalizeSet(append([]string{owner}, in.Members...))
	case models.GroupMovementVerified:
		if in.MovementRef == "" {
			return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "movement ref required")
		}
		movementOwner, err := s.directory.MovementOwner(ctx, in.MovementRef)
		if err != nil {
			return models.Conversation{}, err
		}
		if identity.Normalize(movementOwner) != owner {
			return models.Conversation{}, apperrors.New(apperrors.PermissionDenied, "only the movement owner may create this group")
		}
		submitters, err := s.directory.ApprovedSubmitters(ctx, in.MovementRef)
		if err != nil {
			return models.Conversation{}, err
		}
		participants = normalizeSet(append([]string{owner}, submitters...))
	default:
		return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "invalid group type")
	}

	if len(participants) < models.MinParticipants {
		return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "a group needs at least two participants")
	}
	if len(participants) > models.MaxParticipants {
		return models.Conversation{}, apperrors.New(apperrors.Conflict, "participant cap exceeded")
	}

	now := time.Now().UTC()
	conv := models.Conversation{
		ID:           uuid.NewString(),
		Kind:         models.KindGroup,
		Participants: participants,
		Name:         in.Name,
		AvatarRef:    in.AvatarRef,
		GroupType:    in.GroupType,
		MovementRef:  in.MovementRef,
		Owner:        owner,
		AdminSet:     []string{owner},
		PostMode:     in.PostMode,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// requireManager loads the group and checks management rights. For
// movement_verified groups only the movement owner qualifies, never other
// admins.
func (s *Service) requireManager(ctx context.Context, id, actor string) (models.Conversation, error) {
	conv, err := s.resolveViewer(ctx, id, actor)
	if err != nil {
		return models.Conversation{}, err
	}
	if conv.Kind != models.KindGroup {
		return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "not a group conversation")
	}
	if conv.GroupType == models.GroupMovementVerified {
		if actor != conv.Owner {
			return models.Conversation{}, apperrors.New(apperrors.PermissionDenied, "only the movement owner may change this group")
		}
		return conv, nil
	}
	if !conv.CanManage(actor) {
		return models.Conversation{}, apperrors.New(apperrors.PermissionDenied, "not a group admin")
	}
	return conv, nil
}

// settingsRetries bounds the reload-and-reapply loop when a settings write
// loses the version race to a concurrent conversation mutation.
const settingsRetries = 3

// UpdateGroup applies settings changes. Admin/poster sets are intersected
// with the participant set; the owner always stays in the admin set. The
// write is version-guarded: a concurrent mutation forces a reload and
// reapply, never a silent overwrite.
func (s *Service) UpdateGroup(ctx context.Context, id, actor string, patch GroupPatch) (models.Conversation, error) {
	for attempt := 0; attempt < settingsRetries; attempt++ {
		conv, err := s.requireManager(ctx, id, actor)
		if err != nil {
			return models.Conversation{}, err
		}
		if patch.Name != nil {
			if *patch.Name == "" {
				return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "group name required")
			}
			conv.Name = *patch.Name
		}
		if patch.AvatarRef != nil {
			conv.AvatarRef = *patch.AvatarRef
		}
		if patch.PostMode != nil {
			if !validPostMode(*patch.PostMode) {
				return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "invalid post mode")
			}
			conv.PostMode = *patch.PostMode
		}
		if patch.AdminSet != nil {
			conv.AdminSet = normalizeSet(append([]string{conv.Owner}, patch.AdminSet...))
		}
		if patch.PosterAllowlist != nil {
			conv.PosterAllowlist = normalizeSet(patch.PosterAllowlist)
		}
		conv.PruneDanglingRefs()
		moved, err := s.store.UpdateConversation(ctx, conv)
		if err != nil {
			return models.Conversation{}, err
		}
		if moved {
			return s.store.GetConversation(ctx, id)
		}
	}
	return models.Conversation{}, apperrors.New(apperrors.Conflict, "conversation changed concurrently, retry")
}

// AddParticipants grows the group. For movement_verified groups each added
// identity is re-validated against the evidence directory at add time.
func (s *Service) AddParticipants(ctx context.Context, id, actor string, additions []string) (models.Conversation, error) {
	conv, err := s.requireManager(ctx, id, actor)
	if err != nil {
		return models.Conversation{}, err
	}
	additions = normalizeSet(additions)
	if len(additions) == 0 {
		return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "no participants given")
	}
	missing := 0
	for _, added := range additions {
		if !conv.HasParticipant(added) {
			missing++
		}
	}
	if len(conv.Participants)+missing > models.MaxParticipants {
		return models.Conversation{}, apperrors.New(apperrors.Conflict, "participant cap exceeded")
	}
	for _, added := range additions {
		if conv.HasParticipant(added) {
			continue
		}
		if conv.GroupType == models.GroupMovementVerified {
			eligible, err := s.directory.IsEligible(ctx, conv.MovementRef, added)
			if err != nil {
				return models.Conversation{}, err
			}
			if !eligible {
				return models.Conversation{}, apperrors.New(apperrors.Conflict, "identity is not a verified participant")
			}
		}
		// Each addition is one conditional store step, so two managers
		// adding concurrently never lose each other's members.
		ok, err := s.store.AddParticipant(ctx, id, added, models.MaxParticipants)
		if err != nil {
			return models.Conversation{}, err
		}
		if !ok {
			cur, err := s.store.GetConversation(ctx, id)
			if err != nil {
				return models.Conversation{}, err
			}
			if !cur.HasParticipant(added) {
				return models.Conversation{}, apperrors.New(apperrors.Conflict, "participant cap exceeded")
			}
		}
	}
	return s.store.GetConversation(ctx, id)
}

// RemoveParticipants shrinks the group. The owner is never removed, and
// admin/poster references to removed participants are dropped.
func (s *Service) RemoveParticipants(ctx context.Context, id, actor string, removals []string) (models.Conversation, error) {
	conv, err := s.requireManager(ctx, id, actor)
	if err != nil {
		return models.Conversation{}, err
	}
	removals = normalizeSet(removals)
	if len(removals) == 0 {
		return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "no participants given")
	}
	present := 0
	for _, r := range removals {
		if r == conv.Owner {
			return models.Conversation{}, apperrors.New(apperrors.InvalidRequest, "the owner cannot be removed")
		}
		if conv.HasParticipant(r) {
			present++
		}
	}
	if len(conv.Participants)-present < models.MinParticipants {
		return models.Conversation{}, apperrors.New(apperrors.Conflict, "a group needs at least two participants")
	}
	for _, r := range removals {
		if !conv.HasParticipant(r) {
			continue
		}
		// One conditional store step per removal; the store floor guard
		// keeps concurrent removals from shrinking the group below two.
		ok, err := s.store.RemoveParticipant(ctx, id, r, models.MinParticipants)
		if err != nil {
			return models.Conversation{}, err
		}
		if !ok {
			cur, err := s.store.GetConversation(ctx, id)
			if err != nil {
				return models.Conversation{}, err
			}
			if cur.HasParticipant(r) {
				return models.Conversation{}, apperrors.New(apperrors.Conflict, "a group needs at least two participants")
			}
		}
	}
	return s.store.GetConversation(ctx, id)
}

func normalizeSet(identities []string) []string {
	seen := make(map[string]bool, len(identities))
	out := make([]string, 0, len(identities))
	for _, raw := range identities {
		handle := identity.Normalize(raw)
		if handle == "" || seen[handle] {
			continue
		}
		seen[handle] = true
		out = append(out, handle)
	}
	return out
}
