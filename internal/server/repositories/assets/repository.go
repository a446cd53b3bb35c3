package assets

import (
	"context"

	"github.com/rentproof/rentproof/internal/server/models"
)

// Repository persists evidence assets.
type Repository interface {
	Create(ctx context.Context, a *models.Asset) error

	GetForCase(ctx context.Context, id, caseID string) (*models.Asset, error)

	ListByCase(ctx context.Context, caseID string) ([]*models.Asset, error)

	// CountByPhase returns how many assets of the case carry the given phase tag.
	CountByPhase(ctx context.Context, caseID string, phase models.Phase) (int64, error)

	// SetUploadResult records the server-computed hash, size and mime type.
	// The server hash is written at most once; a second confirmation returns
	// common.ErrAlreadyConfirmed.
	SetUploadResult(ctx context.Context, id, caseID, serverHash string, sizeBytes int64, mimeType string) error

	// Delete removes the asset only while its phase is not sealed on the
	// parent case; the lock state is evaluated inside the statement, not from
	// a value read earlier in the request. Errors: common.ErrNotFound,
	// common.ErrPhaseLocked.
	Delete(ctx context.Context, id, caseID, userID string) error
}
