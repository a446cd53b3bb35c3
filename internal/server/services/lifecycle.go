package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/logging"
	"github.com/rentproof/rentproof/internal/server/mailer"
	"github.com/rentproof/rentproof/internal/server/models"
	"github.com/rentproof/rentproof/internal/server/repositories/repomanager"
	"github.com/rentproof/rentproof/internal/server/storage"
)

// LifecycleService owns the case phase state machine: one-way latches for
// check-in, handover and key return, plus creation and deletion of cases and
// rooms. Lock transitions commit first; the audit entry and the notification
// are best-effort side effects that never roll the transition back.
type LifecycleService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	audit  *AuditService
	mail   mailer.Mailer
	store  storage.ObjectStore
	admin  func(models.Principal) bool
	logger logging.Logger
}

// NewLifecycleService constructs a LifecycleService. isAdmin is the single
// elevated-trust predicate shared with the entitlement layer.
func NewLifecycleService(db *sql.DB, repos repomanager.RepositoryManager, audit *AuditService, mail mailer.Mailer, store storage.ObjectStore, isAdmin func(models.Principal) bool, logger logging.Logger) *LifecycleService {
	return &LifecycleService{
		db: db, repos: repos, audit: audit, mail: mail, store: store,
		admin: isAdmin, logger: logger,
	}
}

// CreateCase assigns identity and the retention window: 12 months by
// default, 10 years for admin principals.
func (s *LifecycleService) CreateCase(ctx context.Context, p models.Principal, stayType models.StayType, label string) (*models.Case, error) {
	switch stayType {
	case models.StayLongTerm, models.StayShortStay:
	default:
		return nil, fmt.Errorf("%w: unknown stay type %q", common.ErrValidation, stayType)
	}

	now := time.Now().UTC()
	retention := now.Add(models.RetentionDefault)
	if s.admin(p) {
		retention = now.Add(models.RetentionAdmin)
	}

	c := &models.Case{
		ID:             uuid.NewString(),
		UserID:         p.UserID,
		Label:          label,
		Status:         "active",
		StayType:       stayType,
		RetentionUntil: &retention,
		CreatedAt:      now,
	}
	if err := s.repos.Cases(s.db).Create(ctx, c); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, c.ID, p, models.AuditCaseCreated, map[string]any{
		"stay_type":       stayType,
		"retention_until": retention,
	})
	return c, nil
}

// GetCase returns the case for its owner.
func (s *LifecycleService) GetCase(ctx context.Context, caseID string, p models.Principal) (*models.Case, error) {
	return s.repos.Cases(s.db).GetForUser(ctx, caseID, p.UserID)
}

// LockResult reports a committed lock transition.
type LockResult struct {
	LockedAt   time.Time
	AssetCount int64
}

// LockCheckin seals the check-in phase. Exactly one concurrent caller wins;
// losers observe common.ErrAlreadyLocked and no second audit entry is
// written for the same lock event.
func (s *LifecycleService) LockCheckin(ctx context.Context, caseID string, p models.Principal) (*LockResult, error) {
	return s.lockPhase(ctx, caseID, p, phaseLockSpec{
		phase:       models.PhaseCheckin,
		lock:        s.repos.Cases(s.db).LockCheckin,
		lockAction:  models.AuditCheckinLocked,
		mailAction:  models.AuditCheckinLockEmailSent,
		mailSubject: "Check-in evidence sealed",
	})
}

// LockHandover seals the handover phase; for short stays the check-in phase
// must already be sealed.
func (s *LifecycleService) LockHandover(ctx context.Context, caseID string, p models.Principal) (*LockResult, error) {
	return s.lockPhase(ctx, caseID, p, phaseLockSpec{
		phase:       models.PhaseHandover,
		lock:        s.repos.Cases(s.db).LockHandover,
		lockAction:  models.AuditHandoverLocked,
		mailAction:  models.AuditHandoverLockEmailSent,
		mailSubject: "Handover evidence sealed",
	})
}

type phaseLockSpec struct {
	phase       models.Phase
	lock        func(ctx context.Context, id, userID string, at time.Time) error
	lockAction  string
	mailAction  string
	mailSubject string
}

func (s *LifecycleService) lockPhase(ctx context.Context, caseID string, p models.Principal, spec phaseLockSpec) (*LockResult, error) {
	now := time.Now().UTC()

	if err := spec.lock(ctx, caseID, p.UserID, now); err != nil {
		return nil, err
	}

	// The transition is committed. Everything below is best-effort and must
	// not fail it.
	count, err := s.repos.Assets(s.db).CountByPhase(ctx, caseID, spec.phase)
	if err != nil {
		s.logger.Warn(ctx, "phase asset count failed", "case_id", caseID, "phase", spec.phase, "error", err)
		count = 0
	}

	s.audit.Record(ctx, caseID, p, spec.lockAction, map[string]any{
		"locked_at":   now,
		"asset_count": count,
	})

	s.notifyOnce(ctx, caseID, p, spec.mailAction, spec.mailSubject, now)

	return &LockResult{LockedAt: now, AssetCount: count}, nil
}

// notifyOnce sends the confirmation email unless an audit entry shows it was
// already sent. The send is at-least-once: a failed audit probe errs on the
// side of sending again.
func (s *LifecycleService) notifyOnce(ctx context.Context, caseID string, p models.Principal, mailAction, subject string, lockedAt time.Time) {
	if p.Email == "" {
		return
	}
	if s.audit.HasBeenRecorded(ctx, caseID, mailAction) {
		return
	}

	text := fmt.Sprintf("Your evidence was sealed on %s. It can no longer be modified.", lockedAt.Format(time.RFC1123))
	err := s.mail.Send(ctx, mailer.Message{
		To:      p.Email,
		Subject: subject,
		Text:    text,
		HTML:    fmt.Sprintf("<p>%s</p>", text),
	})
	if err != nil {
		s.logger.Warn(ctx, "lock notification failed", "case_id", caseID, "action", mailAction, "error", err)
		return
	}

	s.audit.Record(ctx, caseID, p, mailAction, map[string]any{"to": p.Email})
}

// ConfirmKeysReturned records key handover exactly once; a second call
// returns common.ErrAlreadyConfirmed.
func (s *LifecycleService) ConfirmKeysReturned(ctx context.Context, caseID string, p models.Principal) (time.Time, error) {
	now := time.Now().UTC()
	if err := s.repos.Cases(s.db).ConfirmKeysReturned(ctx, caseID, p.UserID, now); err != nil {
		return time.Time{}, err
	}

	s.audit.Record(ctx, caseID, p, models.AuditKeysReturned, map[string]any{"confirmed_at": now})
	return now, nil
}

// DeleteCase removes the case and its owned records; assets, rooms and audit
// entries cascade in the schema, purchases are retained for billing history.
// Stored binaries are removed best-effort after the row deletion commits.
func (s *LifecycleService) DeleteCase(ctx context.Context, caseID string, p models.Principal) error {
	assets, err := s.repos.Assets(s.db).ListByCase(ctx, caseID)
	if err != nil {
		return err
	}

	if err := s.repos.Cases(s.db).Delete(ctx, caseID, p.UserID); err != nil {
		return err
	}

	keys := make([]string, 0, len(assets))
	for _, a := range assets {
		keys = append(keys, a.StoragePath)
	}
	if err := s.store.Remove(ctx, keys); err != nil {
		s.logger.Warn(ctx, "storage cleanup failed after case deletion", "case_id", caseID, "error", err)
	}
	return nil
}

// CreateRoom adds a room to an owned case.
func (s *LifecycleService) CreateRoom(ctx context.Context, caseID string, p models.Principal, name string) (*models.Room, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: room name required", common.ErrValidation)
	}
	if _, err := s.repos.Cases(s.db).GetForUser(ctx, caseID, p.UserID); err != nil {
		return nil, err
	}

	room := &models.Room{
		ID:        uuid.NewString(),
		CaseID:    caseID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repos.Rooms(s.db).Create(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// ListRooms returns the rooms of an owned case.
func (s *LifecycleService) ListRooms(ctx context.Context, caseID string, p models.Principal) ([]*models.Room, error) {
	if _, err := s.repos.Cases(s.db).GetForUser(ctx, caseID, p.UserID); err != nil {
		return nil, err
	}
	return s.repos.Rooms(s.db).ListByCase(ctx, caseID)
}

// DeleteRoom removes a room while the check-in phase is still open. The
// latch is re-checked by the repository at the moment of deletion.
func (s *LifecycleService) DeleteRoom(ctx context.Context, caseID, roomID string, p models.Principal) error {
	if err := s.repos.Rooms(s.db).Delete(ctx, roomID, caseID, p.UserID); err != nil {
		return err
	}
	s.audit.Record(ctx, caseID, p, models.AuditRoomDeleted, map[string]any{"room_id": roomID})
	return nil
}
