package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/logging"
	"github.com/rentproof/rentproof/internal/server/models"
	"github.com/rentproof/rentproof/internal/server/repositories/repomanager"
	"github.com/rentproof/rentproof/internal/server/storage"
)

const (
	// uploadURLTTL bounds how long a presigned PUT target stays valid.
	uploadURLTTL = 15 * time.Minute
	// DownloadURLTTL is the observed signed-download window; clients may
	// cache the URL for slightly less than this.
	DownloadURLTTL = 60 * time.Second
)

// UploadService implements the two-phase upload protocol: an intent phase
// that records the asset and hands out a presigned PUT URL, and a
// confirmation phase that recomputes the content hash server-side and
// compares it against the client's claim.
type UploadService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  storage.ObjectStore
	audit  *AuditService
	logger logging.Logger
}

// NewUploadService constructs an UploadService.
func NewUploadService(db *sql.DB, repos repomanager.RepositoryManager, store storage.ObjectStore, audit *AuditService, logger logging.Logger) *UploadService {
	return &UploadService{db: db, repos: repos, store: store, audit: audit, logger: logger}
}

// InitiateRequest describes an upload intent.
type InitiateRequest struct {
	FileName   string
	MimeType   string
	Type       models.AssetType
	RoomID     *string
	ClientHash *string
}

// InitiateResult carries the new asset id and the presigned upload target.
type InitiateResult struct {
	AssetID   string
	UploadURL string
}

// storageKey namespaces every object by case and asset id, so no two
// legitimate requests ever target the same key.
func storageKey(caseID, assetID, fileName string) string {
	return path.Join("cases", caseID, "assets", assetID, fileName)
}

// Initiate verifies ownership, creates the pending asset record and issues
// the presigned PUT URL.
func (s *UploadService) Initiate(ctx context.Context, caseID string, p models.Principal, req InitiateRequest) (*InitiateResult, error) {
	if req.FileName == "" || req.MimeType == "" {
		return nil, fmt.Errorf("%w: file name and mime type required", common.ErrValidation)
	}

	if _, err := s.repos.Cases(s.db).GetForUser(ctx, caseID, p.UserID); err != nil {
		return nil, err
	}

	a := &models.Asset{
		ID:         uuid.NewString(),
		CaseID:     caseID,
		UserID:     p.UserID,
		Type:       req.Type,
		Phase:      models.PhaseForType(req.Type),
		RoomID:     req.RoomID,
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		ClientHash: req.ClientHash,
		CreatedAt:  time.Now().UTC(),
	}
	a.StoragePath = storageKey(caseID, a.ID, req.FileName)

	if err := s.repos.Assets(s.db).Create(ctx, a); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, caseID, p, models.AuditUploadInitiated, map[string]any{
		"asset_id":    a.ID,
		"asset_type":  a.Type,
		"file_name":   a.FileName,
		"client_hash": req.ClientHash,
	})

	url, err := s.store.PresignPut(ctx, a.StoragePath, uploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}

	return &InitiateResult{AssetID: a.ID, UploadURL: url}, nil
}

// ConfirmResult reports the outcome of hash verification. Verified=false is
// a signal, not an error: the hashes disagree (possible tamper, truncation
// or re-encoding in transit) and the discrepancy is preserved in the audit
// trail.
type ConfirmResult struct {
	Verified   bool
	ServerHash string
	SizeBytes  int64
}

// Confirm downloads the stored bytes, computes the SHA-256 content hash,
// persists the integrity fields exactly once and writes the
// upload_completed audit entry carrying both hashes.
func (s *UploadService) Confirm(ctx context.Context, caseID, assetID string, p models.Principal) (*ConfirmResult, error) {
	if _, err := s.repos.Cases(s.db).GetForUser(ctx, caseID, p.UserID); err != nil {
		return nil, err
	}

	a, err := s.repos.Assets(s.db).GetForCase(ctx, assetID, caseID)
	if err != nil {
		return nil, err
	}

	data, err := s.store.Download(ctx, a.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}

	sum := sha256.Sum256(data)
	serverHash := hex.EncodeToString(sum[:])
	size := int64(len(data))

	if err := s.repos.Assets(s.db).SetUploadResult(ctx, assetID, caseID, serverHash, size, a.MimeType); err != nil {
		return nil, err
	}

	verified := a.ClientHash != nil && *a.ClientHash == serverHash

	details := map[string]any{
		"asset_id":    assetID,
		"server_hash": serverHash,
		"size_bytes":  size,
		"verified":    verified,
	}
	if a.ClientHash != nil {
		details["client_hash"] = *a.ClientHash
	}
	s.audit.Record(ctx, caseID, p, models.AuditUploadCompleted, details)

	if !verified {
		s.logger.Warn(ctx, "client and server hash disagree",
			"case_id", caseID, "asset_id", assetID, "server_hash", serverHash)
	}

	return &ConfirmResult{Verified: verified, ServerHash: serverHash, SizeBytes: size}, nil
}

// DownloadURL issues a time-boxed signed download URL for an owned asset.
func (s *UploadService) DownloadURL(ctx context.Context, caseID, assetID string, p models.Principal) (string, error) {
	if _, err := s.repos.Cases(s.db).GetForUser(ctx, caseID, p.UserID); err != nil {
		return "", err
	}

	a, err := s.repos.Assets(s.db).GetForCase(ctx, assetID, caseID)
	if err != nil {
		return "", err
	}

	url, err := s.store.PresignGet(ctx, a.StoragePath, DownloadURLTTL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}
	return url, nil
}

// ListAssets returns the assets of an owned case.
func (s *UploadService) ListAssets(ctx context.Context, caseID string, p models.Principal) ([]*models.Asset, error) {
	if _, err := s.repos.Cases(s.db).GetForUser(ctx, caseID, p.UserID); err != nil {
		return nil, err
	}
	return s.repos.Assets(s.db).ListByCase(ctx, caseID)
}

// DeleteAsset removes an asset while its phase is unlocked. The repository
// re-evaluates the parent case's latches inside the delete statement, so a
// lock that lands between listing and deleting still protects the asset.
// The stored binary is removed best-effort after the row deletion commits.
func (s *UploadService) DeleteAsset(ctx context.Context, caseID, assetID string, p models.Principal) error {
	a, err := s.repos.Assets(s.db).GetForCase(ctx, assetID, caseID)
	if err != nil {
		return err
	}

	if err := s.repos.Assets(s.db).Delete(ctx, assetID, caseID, p.UserID); err != nil {
		return err
	}

	if err := s.store.Remove(ctx, []string{a.StoragePath}); err != nil {
		s.logger.Warn(ctx, "storage cleanup failed after asset deletion",
			"case_id", caseID, "asset_id", assetID, "error", err)
	}

	s.audit.Record(ctx, caseID, p, models.AuditAssetDeleted, map[string]any{
		"asset_id":  assetID,
		"file_name": a.FileName,
	})
	return nil
}
