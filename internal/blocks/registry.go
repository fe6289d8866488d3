package blocks

import (
	"context"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/store"
)

// Registry manages directed block edges between identities. An edge
// suppresses visibility and interaction in both directions; only the blocker
// may remove it.
type Registry struct {
	store store.Store
}

// NewRegistry builds a Registry over the given store.
func NewRegistry(s store.Store) *Registry {
	return &Registry{store: s}
}

// Block records a directed edge from blocker to blocked.
func (r *Registry) Block(ctx context.Context, blocker, blocked string) error {
	if blocker == blocked {
		return apperrors.New(apperrors.InvalidRequest, "cannot block yourself")
	}
	return r.store.AddBlock(ctx, blocker, blocked)
}

// Unblock removes the edge. Only the blocker holds the edge, so passing the
// actor as blocker enforces the ownership rule.
func (r *Registry) Unblock(ctx context.Context, blocker, blocked string) error {
	removed, err := r.store.RemoveBlock(ctx, blocker, blocked)
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.New(apperrors.NotFound, "block not found")
	}
	return nil
}

// IsBlockedForViewer reports whether either direction of a block edge exists
// between target and viewer. Visibility suppression is symmetric.
func (r *Registry) IsBlockedForViewer(ctx context.Context, target, viewer string) (bool, error) {
	if blocked, err := r.store.HasBlock(ctx, viewer, target); err != nil || blocked {
		return blocked, err
	}
	return r.store.HasBlock(ctx, target, viewer)
}

// IsBlockedByViewer reports whether the viewer is the blocker. Distinguishes
// "I blocked them" from "they blocked me" for error-shape decisions.
func (r *Registry) IsBlockedByViewer(ctx context.Context, target, viewer string) (bool, error) {
	return r.store.HasBlock(ctx, viewer, target)
}

// Gate is the viewer's block set, resolved once per request and threaded
// through every read path instead of re-querying edges at each call site.
type Gate struct {
	viewer     string
	suppressed map[string]bool
}

// GateFor resolves the gate for a viewer.
func (r *Registry) GateFor(ctx context.Context, viewer string) (*Gate, error) {
	identities, err := r.store.BlockedIdentities(ctx, viewer)
	if err != nil {
		return nil, err
	}
	suppressed := make(map[string]bool, len(identities))
	for _, identity := range identities {
		suppressed[identity] = true
	}
	return &Gate{viewer: viewer, suppressed: suppressed}, nil
}

// Viewer returns the identity the gate was resolved for.
func (g *Gate) Viewer() string {
	return g.viewer
}

// Suppressed reports whether interactions with the identity are blocked in
// either direction.
func (g *Gate) Suppressed(identity string) bool {
	return g.suppressed[identity]
}
