package repomanager

import (
	"context"
	"database/sql"

	"github.com/rentproof/rentproof/internal/dbx"
	"github.com/rentproof/rentproof/internal/server/repositories/assets"
	"github.com/rentproof/rentproof/internal/server/repositories/auditlogs"
	"github.com/rentproof/rentproof/internal/server/repositories/cases"
	"github.com/rentproof/rentproof/internal/server/repositories/purchases"
	"github.com/rentproof/rentproof/internal/server/repositories/rooms"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same constructors inside and outside transactions.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Cases(db dbx.DBTX) cases.Repository
	Assets(db dbx.DBTX) assets.Repository
	Purchases(db dbx.DBTX) purchases.Repository
	AuditLogs(db dbx.DBTX) auditlogs.Repository
	Rooms(db dbx.DBTX) rooms.Repository
}
