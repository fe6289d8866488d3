package movements

import (
	"context"
	"sync"

	"messaging-service/internal/apperrors"
)

// StaticDirectory is an in-process Directory backed by maps. The memory
// store backend uses it; tests seed it directly.
type StaticDirectory struct {
	mu         sync.RWMutex
	owners     map[string]string
	submitters map[string][]string
	optedOut   map[string]bool
}

// NewStaticDirectory builds an empty StaticDirectory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		owners:     make(map[string]string),
		submitters: make(map[string][]string),
		optedOut:   make(map[string]bool),
	}
}

var _ Directory = (*StaticDirectory)(nil)

// SetMovement registers a movement with its owner and approved submitters.
func (d *StaticDirectory) SetMovement(ref, owner string, submitters ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[ref] = owner
	d.submitters[ref] = append([]string(nil), submitters...)
}

// SetOptOut toggles an identity's movement-group opt-out.
func (d *StaticDirectory) SetOptOut(identity string, out bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.optedOut[identity] = out
}

func (d *StaticDirectory) MovementOwner(ctx context.Context, movementRef string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.owners[movementRef]
	if !ok {
		return "", apperrors.New(apperrors.NotFound, "movement not found")
	}
	return owner, nil
}

func (d *StaticDirectory) ApprovedSubmitters(ctx context.Context, movementRef string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []string
	for _, id := range d.submitters[movementRef] {
		if !d.optedOut[id] {
			result = append(result, id)
		}
	}
	return result, nil
}

func (d *StaticDirectory) IsEligible(ctx context.Context, movementRef, identity string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.optedOut[identity] {
		return false, nil
	}
	for _, id := range d.submitters[movementRef] {
		if id == identity {
			return true, nil
		}
	}
	return false, nil
}
