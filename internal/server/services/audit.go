// Package services implements the business rules of the evidence lifecycle:
// case phase locking, upload integrity verification, entitlement resolution
// and audit recording.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rentproof/rentproof/internal/logging"
	"github.com/rentproof/rentproof/internal/server/models"
	"github.com/rentproof/rentproof/internal/server/repositories/repomanager"
)

// AuditService appends immutable audit records. Audit writes never fail the
// caller's primary operation: state transitions matter more than audit
// completeness, but every write failure is logged for operators.
type AuditService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *AuditService {
	return &AuditService{db: db, repos: repos, logger: logger}
}

// Record appends one entry. Marshal or insert failures are logged and
// swallowed.
func (s *AuditService) Record(ctx context.Context, caseID string, principal models.Principal, action string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		s.logger.Error(ctx, "audit details marshal failed", "case_id", caseID, "action", action, "error", err)
		payload = []byte(`{}`)
	}

	entry := &models.AuditLogEntry{
		CaseID:    caseID,
		UserID:    principal.UserID,
		Action:    action,
		Details:   payload,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repos.AuditLogs(s.db).Append(ctx, entry); err != nil {
		s.logger.Error(ctx, "audit append failed", "case_id", caseID, "action", action, "error", err)
	}
}

// HasBeenRecorded reports whether an entry with the action tag exists for the
// case. A probe failure is treated as "not recorded": duplicating a
// notification is preferred over losing one.
func (s *AuditService) HasBeenRecorded(ctx context.Context, caseID, action string) bool {
	ok, err := s.repos.AuditLogs(s.db).HasAction(ctx, caseID, action)
	if err != nil {
		s.logger.Error(ctx, "audit probe failed", "case_id", caseID, "action", action, "error", err)
		return false
	}
	return ok
}

// List returns the case's audit trail, visible only to the owner.
func (s *AuditService) List(ctx context.Context, caseID string, principal models.Principal) ([]*models.AuditLogEntry, error) {
	if _, err := s.repos.Cases(s.db).GetForUser(ctx, caseID, principal.UserID); err != nil {
		return nil, err
	}
	return s.repos.AuditLogs(s.db).ListByCase(ctx, caseID)
}
