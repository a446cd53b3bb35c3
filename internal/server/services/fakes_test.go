package services

import (
	"context"
	"sync"
	"time"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/dbx"
	"github.com/rentproof/rentproof/internal/server/mailer"
	"github.com/rentproof/rentproof/internal/server/models"
	"github.com/rentproof/rentproof/internal/server/repositories/assets"
	"github.com/rentproof/rentproof/internal/server/repositories/auditlogs"
	"github.com/rentproof/rentproof/internal/server/repositories/cases"
	"github.com/rentproof/rentproof/internal/server/repositories/purchases"
	"github.com/rentproof/rentproof/internal/server/repositories/repomanager"
	"github.com/rentproof/rentproof/internal/server/repositories/rooms"
)

// -------- in-memory repository fakes --------
//
// The fakes mirror the conditional-update semantics of the Postgres
// repositories: lock transitions are compare-and-set under a mutex, so
// concurrency tests exercise the same at-most-one-winner behavior.

type fakeCasesRepo struct {
	cases.Repository
	mu    sync.Mutex
	byID  map[string]*models.Case
	errOn error // when set, every call fails with this error
}

func newFakeCasesRepo() *fakeCasesRepo {
	return &fakeCasesRepo{byID: map[string]*models.Case{}}
}

func (f *fakeCasesRepo) Create(ctx context.Context, c *models.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errOn != nil {
		return f.errOn
	}
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCasesRepo) GetForUser(ctx context.Context, id, userID string) (*models.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errOn != nil {
		return nil, f.errOn
	}
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCasesRepo) LockCheckin(ctx context.Context, id, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errOn != nil {
		return f.errOn
	}
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return common.ErrNotFound
	}
	if c.CheckinLockedAt != nil {
		return common.ErrAlreadyLocked
	}
	t := at
	c.CheckinLockedAt = &t
	return nil
}

func (f *fakeCasesRepo) LockHandover(ctx context.Context, id, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errOn != nil {
		return f.errOn
	}
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return common.ErrNotFound
	}
	if c.HandoverLockedAt != nil {
		return common.ErrAlreadyLocked
	}
	if c.StayType == models.StayShortStay && c.CheckinLockedAt == nil {
		return common.ErrPhaseOrderViolation
	}
	t := at
	c.HandoverLockedAt = &t
	return nil
}

func (f *fakeCasesRepo) ConfirmKeysReturned(ctx context.Context, id, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errOn != nil {
		return f.errOn
	}
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return common.ErrNotFound
	}
	if c.KeysReturnedAt != nil {
		return common.ErrAlreadyConfirmed
	}
	t := at
	c.KeysReturnedAt = &t
	return nil
}

func (f *fakeCasesRepo) Delete(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return common.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeAssetsRepo struct {
	assets.Repository
	mu    sync.Mutex
	byID  map[string]*models.Asset
	cases *fakeCasesRepo
}

func newFakeAssetsRepo(c *fakeCasesRepo) *fakeAssetsRepo {
	return &fakeAssetsRepo{byID: map[string]*models.Asset{}, cases: c}
}

func (f *fakeAssetsRepo) Create(ctx context.Context, a *models.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.byID[a.ID] = &cp
	return nil
}

func (f *fakeAssetsRepo) GetForCase(ctx context.Context, id, caseID string) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok || a.CaseID != caseID {
		return nil, common.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssetsRepo) ListByCase(ctx context.Context, caseID string) ([]*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Asset
	for _, a := range f.byID {
		if a.CaseID == caseID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAssetsRepo) CountByPhase(ctx context.Context, caseID string, phase models.Phase) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, a := range f.byID {
		if a.CaseID == caseID && a.Phase != nil && *a.Phase == phase {
			n++
		}
	}
	return n, nil
}

func (f *fakeAssetsRepo) SetUploadResult(ctx context.Context, id, caseID, serverHash string, sizeBytes int64, mimeType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok || a.CaseID != caseID {
		return common.ErrNotFound
	}
	if a.ServerHash != nil {
		return common.ErrAlreadyConfirmed
	}
	h := serverHash
	sz := sizeBytes
	a.ServerHash = &h
	a.SizeBytes = &sz
	a.MimeType = mimeType
	return nil
}

func (f *fakeAssetsRepo) Delete(ctx context.Context, id, caseID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok || a.CaseID != caseID {
		return common.ErrNotFound
	}

	c, err := f.cases.GetForUser(ctx, caseID, userID)
	if err != nil {
		return common.ErrNotFound
	}
	if a.Phase != nil {
		if *a.Phase == models.PhaseCheckin && c.CheckinLockedAt != nil {
			return common.ErrPhaseLocked
		}
		if *a.Phase == models.PhaseHandover && c.HandoverLockedAt != nil {
			return common.ErrPhaseLocked
		}
	}
	delete(f.byID, id)
	return nil
}

type fakePurchasesRepo struct {
	purchases.Repository
	mu   sync.Mutex
	held map[string][]models.PackType // caseID -> packs
}

func newFakePurchasesRepo() *fakePurchasesRepo {
	return &fakePurchasesRepo{held: map[string][]models.PackType{}}
}

func (f *fakePurchasesRepo) Insert(ctx context.Context, p *models.Purchase) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, have := range f.held[p.CaseID] {
		if have == p.PackType {
			return false, nil
		}
	}
	f.held[p.CaseID] = append(f.held[p.CaseID], p.PackType)
	return true, nil
}

func (f *fakePurchasesRepo) ListPacks(ctx context.Context, caseID string) ([]models.PackType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PackType(nil), f.held[caseID]...), nil
}

type fakeAuditRepo struct {
	auditlogs.Repository
	mu        sync.Mutex
	entries   []*models.AuditLogEntry
	appendErr error
	probeErr  error
}

func newFakeAuditRepo() *fakeAuditRepo { return &fakeAuditRepo{} }

func (f *fakeAuditRepo) Append(ctx context.Context, e *models.AuditLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	e.ID = int64(len(f.entries) + 1)
	cp := *e
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeAuditRepo) HasAction(ctx context.Context, caseID, action string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeErr != nil {
		return false, f.probeErr
	}
	for _, e := range f.entries {
		if e.CaseID == caseID && e.Action == action {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAuditRepo) ListByCase(ctx context.Context, caseID string) ([]*models.AuditLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AuditLogEntry
	for _, e := range f.entries {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) countAction(caseID, action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.CaseID == caseID && e.Action == action {
			n++
		}
	}
	return n
}

type fakeRoomsRepo struct {
	rooms.Repository
	mu    sync.Mutex
	byID  map[string]*models.Room
	cases *fakeCasesRepo
}

func newFakeRoomsRepo(c *fakeCasesRepo) *fakeRoomsRepo {
	return &fakeRoomsRepo{byID: map[string]*models.Room{}, cases: c}
}

func (f *fakeRoomsRepo) Create(ctx context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *room
	f.byID[room.ID] = &cp
	return nil
}

func (f *fakeRoomsRepo) ListByCase(ctx context.Context, caseID string) ([]*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Room
	for _, r := range f.byID {
		if r.CaseID == caseID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRoomsRepo) Delete(ctx context.Context, id, caseID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok || r.CaseID != caseID {
		return common.ErrNotFound
	}
	c, err := f.cases.GetForUser(ctx, caseID, userID)
	if err != nil {
		return common.ErrNotFound
	}
	if c.CheckinLockedAt != nil {
		return common.ErrPhaseLocked
	}
	delete(f.byID, id)
	return nil
}

// -------- repository manager fake --------

type fakeRepoManager struct {
	repomanager.RepositoryManager
	c  *fakeCasesRepo
	a  *fakeAssetsRepo
	p  *fakePurchasesRepo
	al *fakeAuditRepo
	r  *fakeRoomsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	c := newFakeCasesRepo()
	return &fakeRepoManager{
		c:  c,
		a:  newFakeAssetsRepo(c),
		p:  newFakePurchasesRepo(),
		al: newFakeAuditRepo(),
		r:  newFakeRoomsRepo(c),
	}
}

func (m *fakeRepoManager) Cases(db dbx.DBTX) cases.Repository          { return m.c }
func (m *fakeRepoManager) Assets(db dbx.DBTX) assets.Repository       { return m.a }
func (m *fakeRepoManager) Purchases(db dbx.DBTX) purchases.Repository { return m.p }
func (m *fakeRepoManager) AuditLogs(db dbx.DBTX) auditlogs.Repository { return m.al }
func (m *fakeRepoManager) Rooms(db dbx.DBTX) rooms.Repository         { return m.r }

// -------- collaborator fakes --------

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
	getErr  error
	signErr error
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (f *fakeStore) PresignPut(ctx context.Context, key string, expires time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://signed.example/put/" + key, nil
}

func (f *fakeStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://signed.example/get/" + key, nil
}

func (f *fakeStore) Download(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) Remove(ctx context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, keys...)
	return nil
}
