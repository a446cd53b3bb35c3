// Package auditlogs provides the PostgreSQL-backed repository for the
// append-only audit trail.
package auditlogs

import (
	"context"
	"fmt"

	"github.com/rentproof/rentproof/internal/dbx"
	"github.com/rentproof/rentproof/internal/server/models"
)

// PostgresRepository implements audit log storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_logs (case_id, user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`
	err := r.db.QueryRowContext(ctx, query,
		e.CaseID, e.UserID, e.Action, e.Details, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) HasAction(ctx context.Context, caseID, action string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM audit_logs WHERE case_id = $1 AND action = $2);`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, caseID, action).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) ListByCase(ctx context.Context, caseID string) ([]*models.AuditLogEntry, error) {
	query := `
		SELECT id, case_id, user_id, action, details, created_at
		FROM audit_logs
		WHERE case_id = $1
		ORDER BY created_at, id;
	`
	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to select audit entries: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.UserID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
