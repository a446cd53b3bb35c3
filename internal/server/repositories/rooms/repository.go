package rooms

import (
	"context"

	"github.com/rentproof/rentproof/internal/server/models"
)

// Repository persists rooms within a case.
type Repository interface {
	Create(ctx context.Context, room *models.Room) error

	ListByCase(ctx context.Context, caseID string) ([]*models.Room, error)

	// Delete removes the room only while the case's check-in phase is still
	// open; the latch is evaluated inside the statement. Errors:
	// common.ErrNotFound, common.ErrPhaseLocked.
	Delete(ctx context.Context, id, caseID, userID string) error
}
