// Package cases provides the PostgreSQL-backed repository for tenancy cases
// and their one-way lifecycle latches.
package cases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/dbx"
	"github.com/rentproof/rentproof/internal/server/models"
)

// PostgresRepository implements case storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Case) error {
	query := `
		INSERT INTO cases (id, user_id, label, status, stay_type, retention_until, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.Label, c.Status, c.StayType, c.RetentionUntil, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetForUser(ctx context.Context, id, userID string) (*models.Case, error) {
	query := `
		SELECT id, user_id, label, status, stay_type,
		       checkin_locked_at, handover_locked_at, keys_returned_at,
		       retention_until, created_at
		FROM cases
		WHERE id = $1 AND user_id = $2;
	`
	row := r.db.QueryRowContext(ctx, query, id, userID)

	var c models.Case
	err := row.Scan(&c.ID, &c.UserID, &c.Label, &c.Status, &c.StayType,
		&c.CheckinLockedAt, &c.HandoverLockedAt, &c.KeysReturnedAt,
		&c.RetentionUntil, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &c, nil
}

// LockCheckin is a compare-and-set on the nullable lock column: the update
// matches only while the column is still null, so two concurrent calls
// produce exactly one affected row.
func (r *PostgresRepository) LockCheckin(ctx context.Context, id, userID string, at time.Time) error {
	query := `
		UPDATE cases SET checkin_locked_at = $3
		WHERE id = $1 AND user_id = $2 AND checkin_locked_at IS NULL;
	`
	res, err := r.db.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Zero rows: the case is missing, foreign, or already locked.
	c, err := r.GetForUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if c.CheckinLatch().Locked() {
		return common.ErrAlreadyLocked
	}
	return fmt.Errorf("lock checkin: unexpected state for case %s", id)
}

// LockHandover additionally encodes the short-stay ordering rule in the
// update condition, then classifies a zero-row outcome by re-reading the row.
func (r *PostgresRepository) LockHandover(ctx context.Context, id, userID string, at time.Time) error {
	query := `
		UPDATE cases SET handover_locked_at = $3
		WHERE id = $1 AND user_id = $2 AND handover_locked_at IS NULL
		  AND (stay_type <> 'short_stay' OR checkin_locked_at IS NOT NULL);
	`
	res, err := r.db.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return nil
	}

	c, err := r.GetForUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if c.HandoverLatch().Locked() {
		return common.ErrAlreadyLocked
	}
	if c.StayType == models.StayShortStay && !c.CheckinLatch().Locked() {
		return common.ErrPhaseOrderViolation
	}
	return fmt.Errorf("lock handover: unexpected state for case %s", id)
}

func (r *PostgresRepository) ConfirmKeysReturned(ctx context.Context, id, userID string, at time.Time) error {
	query := `
		UPDATE cases SET keys_returned_at = $3
		WHERE id = $1 AND user_id = $2 AND keys_returned_at IS NULL;
	`
	res, err := r.db.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 1 {
		return nil
	}

	c, err := r.GetForUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if c.KeysLatch().Locked() {
		return common.ErrAlreadyConfirmed
	}
	return fmt.Errorf("confirm keys returned: unexpected state for case %s", id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	query := `DELETE FROM cases WHERE id = $1 AND user_id = $2;`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
