package auditlogs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rentproof/rentproof/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestAppend_AssignsSerialID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO audit_logs .* RETURNING id`).
		WithArgs("c1", "u1", "checkin_locked", []byte(`{"asset_count":3}`), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	e := &models.AuditLogEntry{
		CaseID: "c1", UserID: "u1", Action: "checkin_locked",
		Details: []byte(`{"asset_count":3}`), CreatedAt: now,
	}
	if err := repo.Append(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != 7 {
		t.Fatalf("want id 7, got %d", e.ID)
	}
}

func TestHasAction(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM audit_logs WHERE case_id = \$1 AND action = \$2\)`).
		WithArgs("c1", "checkin_lock_email_sent").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasAction(context.Background(), "c1", "checkin_lock_email_sent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("want true")
	}
}

func TestListByCase_OrderedQuery(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, case_id, user_id, action, details, created_at\s+FROM audit_logs\s+WHERE case_id = \$1\s+ORDER BY created_at, id`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "case_id", "user_id", "action", "details", "created_at"}).
			AddRow(int64(1), "c1", "u1", "upload_initiated", []byte(`{}`), now).
			AddRow(int64(2), "c1", "u1", "upload_completed", []byte(`{}`), now))

	entries, err := repo.ListByCase(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != "upload_initiated" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
