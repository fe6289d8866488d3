package movements

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
)

// Directory exposes the movement-evidence lookups the messaging service
// consumes. Eligibility is always recomputed from the evidence and opt-out
// state; nothing here is cached.
type Directory interface {
	MovementOwner(ctx context.Context, movementRef string) (string, error)
	ApprovedSubmitters(ctx context.Context, movementRef string) ([]string, error)
	IsEligible(ctx context.Context, movementRef, identity string) (bool, error)
}

// SQLDirectory reads the platform's movement tables directly.
type SQLDirectory struct {
	db *sqlx.DB
}

// NewSQLDirectory wraps an sqlx connection.
func NewSQLDirectory(db *sqlx.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

var _ Directory = (*SQLDirectory)(nil)

// MovementOwner returns the owning identity of a movement.
func (d *SQLDirectory) MovementOwner(ctx context.Context, movementRef string) (string, error) {
	var owner string
	err := d.db.GetContext(ctx, &owner, `SELECT owner FROM movements WHERE ref=$1`, movementRef)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.New(apperrors.NotFound, "movement not found")
	}
	return owner, err
}

// ApprovedSubmitters lists identities with approved evidence who have not
// opted out of movement groups.
func (d *SQLDirectory) ApprovedSubmitters(ctx context.Context, movementRef string) ([]string, error) {
	var result []string
	err := d.db.SelectContext(ctx, &result, `SELECT e.identity FROM movement_evidence e
        WHERE e.movement_ref=$1 AND e.approved
        AND NOT EXISTS (SELECT 1 FROM movement_group_opt_outs o WHERE o.identity = e.identity)
        ORDER BY e.identity`, movementRef)
	return result, err
}

// IsEligible recomputes whether the identity is currently an approved
// submitter who has not opted out.
func (d *SQLDirectory) IsEligible(ctx context.Context, movementRef, identity string) (bool, error) {
	var eligible bool
	err := d.db.GetContext(ctx, &eligible, `SELECT EXISTS(
        SELECT 1 FROM movement_evidence e
        WHERE e.movement_ref=$1 AND e.identity=$2 AND e.approved
        AND NOT EXISTS (SELECT 1 FROM movement_group_opt_outs o WHERE o.identity = e.identity))`,
		movementRef, identity)
	return eligible, err
}
