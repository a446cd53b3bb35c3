// Package purchases provides the PostgreSQL-backed repository for pack
// purchases. Rows carry no FK to cases: billing history survives case
// deletion.
package purchases

import (
	"context"
	"fmt"

	"github.com/rentproof/rentproof/internal/dbx"
	"github.com/rentproof/rentproof/internal/server/models"
)

// PostgresRepository implements purchase storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert relies on the unique (case_id, pack_type) index: a duplicate grant
// affects zero rows and is reported as already-held, never as an error.
func (r *PostgresRepository) Insert(ctx context.Context, p *models.Purchase) (bool, error) {
	query := `
		INSERT INTO purchases (id, case_id, pack_type, amount_cents, currency, payment_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (case_id, pack_type) DO NOTHING;
	`
	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.CaseID, p.PackType, p.AmountCents, p.Currency, p.PaymentRef, p.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) ListPacks(ctx context.Context, caseID string) ([]models.PackType, error) {
	query := `SELECT pack_type FROM purchases WHERE case_id = $1;`

	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to select purchases: %w", err)
	}
	defer rows.Close()

	var result []models.PackType
	for rows.Next() {
		var p models.PackType
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
