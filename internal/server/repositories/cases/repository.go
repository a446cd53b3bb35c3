package cases

import (
	"context"
	"time"

	"github.com/rentproof/rentproof/internal/server/models"
)

// Repository persists cases. Lock transitions are expressed as single
// conditional updates so that concurrent attempts resolve in the store:
// exactly one caller wins, the rest observe the idempotency sentinel.
type Repository interface {
	Create(ctx context.Context, c *models.Case) error

	// GetForUser returns the case only when it is owned by userID;
	// common.ErrNotFound otherwise (existence is never revealed).
	GetForUser(ctx context.Context, id, userID string) (*models.Case, error)

	// LockCheckin seals the check-in phase. Errors: common.ErrNotFound,
	// common.ErrAlreadyLocked.
	LockCheckin(ctx context.Context, id, userID string, at time.Time) error

	// LockHandover seals the handover phase. For short stays the check-in
	// phase must already be sealed. Errors: common.ErrNotFound,
	// common.ErrAlreadyLocked, common.ErrPhaseOrderViolation.
	LockHandover(ctx context.Context, id, userID string, at time.Time) error

	// ConfirmKeysReturned records key handover once. Errors:
	// common.ErrNotFound, common.ErrAlreadyConfirmed.
	ConfirmKeysReturned(ctx context.Context, id, userID string, at time.Time) error

	// Delete removes the case; owned assets, rooms and audit entries cascade
	// in the schema. Purchases are retained.
	Delete(ctx context.Context, id, userID string) error
}
