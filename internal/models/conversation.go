package models

import "time"

// Conversation kinds.
const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// Direct-conversation request states.
const (
	StatePending  = "pending"
	StateAccepted = "accepted"
	StateDeclined = "declined"
	StateBlocked  = "blocked"
)

// Group types.
const (
	GroupCustom           = "custom"
	GroupMovementVerified = "movement_verified"
)

// Group post modes.
const (
	PostOwnerOnly = "owner_only"
	PostAdmins    = "admins"
	PostSelected  = "selected"
	PostAll       = "all"
)

// Participant set bounds for every conversation.
const (
	MinParticipants = 2
	MaxParticipants = 10
)

// Conversation is a direct or group conversation. Identities are normalized
// lower-case handles owned by the identity service and referenced by value.
type Conversation struct {
	ID           string    `db:"id" json:"id"`
	Kind         string    `db:"kind" json:"kind"`
	Participants []string  `db:"participants" json:"participants"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	// Version counts conversation writes. Stores use it to guard
	// whole-settings updates against concurrent mutation.
	Version int64 `db:"version" json:"-"`

	// Direct only.
	RequestState string `db:"request_state" json:"request_state,omitempty"`
	Requester    string `db:"requester" json:"requester,omitempty"`
	BlockedBy    string `db:"blocked_by" json:"blocked_by,omitempty"`
	Encrypted    bool   `db:"encrypted" json:"encrypted,omitempty"`

	// Group only.
	Name            string   `db:"name" json:"name,omitempty"`
	AvatarRef       string   `db:"avatar_ref" json:"avatar_ref,omitempty"`
	GroupType       string   `db:"group_type" json:"group_type,omitempty"`
	MovementRef     string   `db:"movement_ref" json:"movement_ref,omitempty"`
	Owner           string   `db:"owner" json:"owner,omitempty"`
	AdminSet        []string `db:"admin_set" json:"admin_set,omitempty"`
	PosterAllowlist []string `db:"poster_allowlist" json:"poster_allowlist,omitempty"`
	PostMode        string   `db:"post_mode" json:"post_mode,omitempty"`
}

// HasParticipant reports membership of the identity in the conversation.
func (c *Conversation) HasParticipant(identity string) bool {
	return contains(c.Participants, identity)
}

// Peer returns the other participant of a direct conversation.
func (c *Conversation) Peer(identity string) string {
	for _, p := range c.Participants {
		if p != identity {
			return p
		}
	}
	return ""
}

// IsAdmin reports whether identity manages the group. The owner is always in
// the admin set.
func (c *Conversation) IsAdmin(identity string) bool {
	if c.Owner != "" && identity == c.Owner {
		return true
	}
	return contains(c.AdminSet, identity)
}

// CanPost applies the group posting policy.
func (c *Conversation) CanPost(identity string) bool {
	if !c.HasParticipant(identity) {
		return false
	}
	switch c.PostMode {
	case PostAll, "":
		return true
	case PostAdmins:
		return c.IsAdmin(identity)
	case PostOwnerOnly:
		if c.Owner == "" {
			return c.IsAdmin(identity)
		}
		return identity == c.Owner
	case PostSelected:
		return c.IsAdmin(identity) || contains(c.PosterAllowlist, identity)
	default:
		return false
	}
}

// CanManage reports whether identity may change group settings or membership.
func (c *Conversation) CanManage(identity string) bool {
	return c.IsAdmin(identity)
}

// CanSendDirect applies the state-machine send-permission rule.
func (c *Conversation) CanSendDirect(sender string) bool {
	switch c.RequestState {
	case StateAccepted:
		return true
	case StatePending:
		return sender == c.Requester
	default:
		return false
	}
}

// PruneDanglingRefs intersects adminSet and posterAllowlist with the current
// participant set. Dangling references are dropped, never errored.
func (c *Conversation) PruneDanglingRefs() {
	c.AdminSet = intersect(c.AdminSet, c.Participants)
	c.PosterAllowlist = intersect(c.PosterAllowlist, c.Participants)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersect(set, keep []string) []string {
	out := set[:0]
	for _, s := range set {
		if contains(keep, s) {
			out = append(out, s)
		}
	}
	return out
}
