package purchases

import (
	"context"

	"github.com/rentproof/rentproof/internal/server/models"
)

// Repository persists pack purchases. Inserts are idempotent per
// (case, pack type).
type Repository interface {
	// Insert adds the purchase unless the case already holds the pack.
	// Returns false (and no error) when the pack was already granted.
	Insert(ctx context.Context, p *models.Purchase) (bool, error)

	// ListPacks returns the set of packs held by the case.
	ListPacks(ctx context.Context, caseID string) ([]models.PackType, error)
}
