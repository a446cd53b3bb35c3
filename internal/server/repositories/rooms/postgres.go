// Package rooms provides the PostgreSQL-backed repository for case rooms.
package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/dbx"
	"github.com/rentproof/rentproof/internal/server/models"
)

// PostgresRepository implements room storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, room *models.Room) error {
	query := `INSERT INTO rooms (id, case_id, name, created_at) VALUES ($1, $2, $3, $4);`

	_, err := r.db.ExecContext(ctx, query, room.ID, room.CaseID, room.Name, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByCase(ctx context.Context, caseID string) ([]*models.Room, error) {
	query := `SELECT id, case_id, name, created_at FROM rooms WHERE case_id = $1 ORDER BY created_at, id;`

	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to select rooms: %w", err)
	}
	defer rows.Close()

	var result []*models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.CaseID, &room.Name, &room.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete checks the check-in latch inside the statement, mirroring the asset
// delete guard.
func (r *PostgresRepository) Delete(ctx context.Context, id, caseID, userID string) error {
	query := `
		DELETE FROM rooms r
		USING cases c
		WHERE r.id = $1 AND r.case_id = $2 AND r.case_id = c.id AND c.user_id = $3
		  AND c.checkin_locked_at IS NULL;
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

	check := `
		SELECT 1
		FROM rooms r
		JOIN cases c ON r.case_id = c.id
		WHERE r.id = $1 AND r.case_id = $2 AND c.user_id = $3;
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
