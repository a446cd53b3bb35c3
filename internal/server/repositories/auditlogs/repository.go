package auditlogs

import (
	"context"

	"github.com/rentproof/rentproof/internal/server/models"
)

// Repository persists the append-only audit log. No update or delete
// operations exist on this interface by design.
type Repository interface {
	Append(ctx context.Context, e *models.AuditLogEntry) error

	// HasAction reports whether any entry with the given action tag exists
	// for the case; used as an idempotency probe for notification sends.
	HasAction(ctx context.Context, caseID, action string) (bool, error)

	// ListByCase returns entries in timestamp order, insertion order breaking
	// ties.
	ListByCase(ctx context.Context, caseID string) ([]*models.AuditLogEntry, error)
}
