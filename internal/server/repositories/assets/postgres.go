// Package assets provides the PostgreSQL-backed repository for evidence
// assets and their integrity fields.
package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/dbx"
	"github.com/rentproof/rentproof/internal/server/models"
)

// PostgresRepository implements asset storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Asset) error {
	query := `
		INSERT INTO assets (id, case_id, user_id, type, phase, room_id,
		                    file_name, mime_type, client_hash, storage_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.CaseID, a.UserID, a.Type, a.Phase, a.RoomID,
		a.FileName, a.MimeType, a.ClientHash, a.StoragePath, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetForCase(ctx context.Context, id, caseID string) (*models.Asset, error) {
	query := `
		SELECT id, case_id, user_id, type, phase, room_id,
		       file_name, mime_type, size_bytes, client_hash, server_hash,
		       storage_path, created_at
		FROM assets
		WHERE id = $1 AND case_id = $2;
	`
	row := r.db.QueryRowContext(ctx, query, id, caseID)

	var a models.Asset
	err := row.Scan(&a.ID, &a.CaseID, &a.UserID, &a.Type, &a.Phase, &a.RoomID,
		&a.FileName, &a.MimeType, &a.SizeBytes, &a.ClientHash, &a.ServerHash,
		&a.StoragePath, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) ListByCase(ctx context.Context, caseID string) ([]*models.Asset, error) {
	query := `
		SELECT id, case_id, user_id, type, phase, room_id,
		       file_name, mime_type, size_bytes, client_hash, server_hash,
		       storage_path, created_at
		FROM assets
		WHERE case_id = $1
		ORDER BY created_at, id;
	`
	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to select assets: %w", err)
	}
	defer rows.Close()

	var result []*models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.CaseID, &a.UserID, &a.Type, &a.Phase, &a.RoomID,
			&a.FileName, &a.MimeType, &a.SizeBytes, &a.ClientHash, &a.ServerHash,
			&a.StoragePath, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CountByPhase(ctx context.Context, caseID string, phase models.Phase) (int64, error) {
	query := `SELECT COUNT(*) FROM assets WHERE case_id = $1 AND phase = $2;`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, caseID, phase).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// SetUploadResult writes integrity fields only while server_hash is still
// null, so the hash can never be overwritten after the first confirmation.
func (r *PostgresRepository) SetUploadResult(ctx context.Context, id, caseID, serverHash string, sizeBytes int64, mimeType string) error {
	query := `
		UPDATE assets SET server_hash = $3, size_bytes = $4, mime_type = $5
		WHERE id = $1 AND case_id = $2 AND server_hash IS NULL;
	`
	res, err := r.db.ExecContext(ctx, query, id, caseID, serverHash, sizeBytes, mimeType)
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

	a, err := r.GetForCase(ctx, id, caseID)
	if err != nil {
		return err
	}
	if a.ServerHash != nil {
		return common.ErrAlreadyConfirmed
	}
	return fmt.Errorf("set upload result: unexpected state for asset %s", id)
}

// Delete re-evaluates the parent case's latches inside the statement itself,
// closing the window between a list and a delete racing a lock transition.
func (r *PostgresRepository) Delete(ctx context.Context, id, caseID, userID string) error {
	query := `
		DELETE FROM assets a
		USING cases c
		WHERE a.id = $1 AND a.case_id = $2 AND a.case_id = c.id AND c.user_id = $3
		  AND NOT (a.phase = 'check-in' AND c.checkin_locked_at IS NOT NULL)
		  AND NOT (a.phase = 'handover' AND c.handover_locked_at IS NOT NULL);
	`
	res, err := r.db.ExecContext(ctx, query, id, caseID, userID)
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

	// Zero rows: classify. A row that is still visible to this user was
	// protected by a lock; anything else is reported as not found.
	check := `
		SELECT 1
		FROM assets a
		JOIN cases c ON a.case_id = c.id
		WHERE a.id = $1 AND a.case_id = $2 AND c.user_id = $3;
	`
	var one int
	err = r.db.QueryRowContext(ctx, check, id, caseID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return common.ErrPhaseLocked
}
