package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/logging"
	"github.com/rentproof/rentproof/internal/server/models"
	"github.com/rentproof/rentproof/internal/server/services"
)

// The handler depends on narrow views of the service layer so tests can
// substitute fakes per concern.

type lifecycleService interface {
	CreateCase(ctx context.Context, p models.Principal, stayType models.StayType, label string) (*models.Case, error)
	GetCase(ctx context.Context, caseID string, p models.Principal) (*models.Case, error)
	LockCheckin(ctx context.Context, caseID string, p models.Principal) (*services.LockResult, error)
	LockHandover(ctx context.Context, caseID string, p models.Principal) (*services.LockResult, error)
	ConfirmKeysReturned(ctx context.Context, caseID string, p models.Principal) (time.Time, error)
	DeleteCase(ctx context.Context, caseID string, p models.Principal) error
	CreateRoom(ctx context.Context, caseID string, p models.Principal, name string) (*models.Room, error)
	ListRooms(ctx context.Context, caseID string, p models.Principal) ([]*models.Room, error)
	DeleteRoom(ctx context.Context, caseID, roomID string, p models.Principal) error
}

type uploadService interface {
	Initiate(ctx context.Context, caseID string, p models.Principal, req services.InitiateRequest) (*services.InitiateResult, error)
	Confirm(ctx context.Context, caseID, assetID string, p models.Principal) (*services.ConfirmResult, error)
	DownloadURL(ctx context.Context, caseID, assetID string, p models.Principal) (string, error)
	ListAssets(ctx context.Context, caseID string, p models.Principal) ([]*models.Asset, error)
	DeleteAsset(ctx context.Context, caseID, assetID string, p models.Principal) error
}

type entitlementService interface {
	IsAdmin(p models.Principal) bool
	Resolve(ctx context.Context, caseID string, p models.Principal, capability services.Capability) (services.Decision, error)
	GrantAdminUnlock(ctx context.Context, caseID string, pack models.PackType, actor models.Principal) error
	CreateCheckout(ctx context.Context, caseID string, p models.Principal, pack models.PackType) (string, error)
}

type auditService interface {
	List(ctx context.Context, caseID string, p models.Principal) ([]*models.AuditLogEntry, error)
}

// Handler holds the HTTP handlers for every route.
type Handler struct {
	lifecycle    lifecycleService
	uploads      uploadService
	entitlements entitlementService
	audit        auditService
	ping         func(ctx context.Context) error
	logger       logging.Logger
}

// NewHandler constructs the handler set. ping checks the database for the
// health endpoint and may be nil.
func NewHandler(lifecycle lifecycleService, uploads uploadService, entitlements entitlementService, audit auditService, ping func(ctx context.Context) error, logger logging.Logger) *Handler {
	return &Handler{
		lifecycle:    lifecycle,
		uploads:      uploads,
		entitlements: entitlements,
		audit:        audit,
		ping:         ping,
		logger:       logger,
	}
}

// ---- wire DTOs ----

type caseResponse struct {
	ID               string     `json:"id"`
	Label            string     `json:"label,omitempty"`
	Status           string     `json:"status"`
	StayType         string     `json:"stay_type"`
	CheckinLockedAt  *time.Time `json:"checkin_locked_at,omitempty"`
	HandoverLockedAt *time.Time `json:"handover_locked_at,omitempty"`
	KeysReturnedAt   *time.Time `json:"keys_returned_at,omitempty"`
	RetentionUntil   *time.Time `json:"retention_until,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toCaseResponse(c *models.Case) caseResponse {
	return caseResponse{
		ID:               c.ID,
		Label:            c.Label,
		Status:           c.Status,
		StayType:         string(c.StayType),
		CheckinLockedAt:  c.CheckinLockedAt,
		HandoverLockedAt: c.HandoverLockedAt,
		KeysReturnedAt:   c.KeysReturnedAt,
		RetentionUntil:   c.RetentionUntil,
		CreatedAt:        c.CreatedAt,
	}
}

type assetResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Phase      *string   `json:"phase,omitempty"`
	RoomID     *string   `json:"room_id,omitempty"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  *int64    `json:"size_bytes,omitempty"`
	ServerHash *string   `json:"server_hash,omitempty"`
	Verified   bool      `json:"verified"`
	CreatedAt  time.Time `json:"created_at"`
}

func toAssetResponse(a *models.Asset) assetResponse {
	var phase *string
	if a.Phase != nil {
		s := string(*a.Phase)
		phase = &s
	}
	return assetResponse{
		ID:         a.ID,
		Type:       string(a.Type),
		Phase:      phase,
		RoomID:     a.RoomID,
		FileName:   a.FileName,
		MimeType:   a.MimeType,
		SizeBytes:  a.SizeBytes,
		ServerHash: a.ServerHash,
		Verified:   a.Verified(),
		CreatedAt:  a.CreatedAt,
	}
}

// ---- health ----

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- cases ----

func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req struct {
		StayType string `json:"stay_type"`
		Label    string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.lifecycle.CreateCase(r.Context(), p, models.StayType(req.StayType), req.Label)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCaseResponse(c))
}

func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	c, err := h.lifecycle.GetCase(r.Context(), chi.URLParam(r, "caseID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCaseResponse(c))
}

func (h *Handler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if err := h.lifecycle.DeleteCase(r.Context(), chi.URLParam(r, "caseID"), p); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LockCheckin(w http.ResponseWriter, r *http.Request) {
	h.lockPhase(w, r, h.lifecycle.LockCheckin)
}

func (h *Handler) LockHandover(w http.ResponseWriter, r *http.Request) {
	h.lockPhase(w, r, h.lifecycle.LockHandover)
}

func (h *Handler) lockPhase(w http.ResponseWriter, r *http.Request, lock func(ctx context.Context, caseID string, p models.Principal) (*services.LockResult, error)) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	res, err := lock(r.Context(), chi.URLParam(r, "caseID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"locked_at":   res.LockedAt,
		"asset_count": res.AssetCount,
	})
}

func (h *Handler) ConfirmKeysReturned(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	at, err := h.lifecycle.ConfirmKeysReturned(r.Context(), chi.URLParam(r, "caseID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"confirmed_at": at})
}

// ---- rooms ----

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.lifecycle.CreateRoom(r.Context(), chi.URLParam(r, "caseID"), p, req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         room.ID,
		"name":       room.Name,
		"created_at": room.CreatedAt,
	})
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	rooms, err := h.lifecycle.ListRooms(r.Context(), chi.URLParam(r, "caseID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, map[string]any{
			"id":         room.ID,
			"name":       room.Name,
			"created_at": room.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": out})
}

func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	err := h.lifecycle.DeleteRoom(r.Context(), chi.URLParam(r, "caseID"), chi.URLParam(r, "roomID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- uploads ----

func (h *Handler) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req struct {
		FileName   string  `json:"file_name"`
		MimeType   string  `json:"mime_type"`
		Type       string  `json:"type"`
		RoomID     *string `json:"room_id"`
		ClientHash *string `json:"client_hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.uploads.Initiate(r.Context(), chi.URLParam(r, "caseID"), p, services.InitiateRequest{
		FileName:   req.FileName,
		MimeType:   req.MimeType,
		Type:       models.AssetType(req.Type),
		RoomID:     req.RoomID,
		ClientHash: req.ClientHash,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"asset_id":   res.AssetID,
		"upload_url": res.UploadURL,
	})
}

func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	res, err := h.uploads.Confirm(r.Context(), chi.URLParam(r, "caseID"), chi.URLParam(r, "assetID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verified":    res.Verified,
		"server_hash": res.ServerHash,
		"size_bytes":  res.SizeBytes,
	})
}

func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	assets, err := h.uploads.ListAssets(r.Context(), chi.URLParam(r, "caseID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, toAssetResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": out})
}

func (h *Handler) DownloadAsset(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	url, err := h.uploads.DownloadURL(r.Context(), chi.URLParam(r, "caseID"), chi.URLParam(r, "assetID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"download_url": url,
		"expires_in":   int(services.DownloadURLTTL.Seconds()),
	})
}

func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	err := h.uploads.DeleteAsset(r.Context(), chi.URLParam(r, "caseID"), chi.URLParam(r, "assetID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- audit ----

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	entries, err := h.audit.List(r.Context(), chi.URLParam(r, "caseID"), p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"action":     e.Action,
			"details":    json.RawMessage(e.Details),
			"created_at": e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// ---- entitlements and payments ----

func (h *Handler) ResolveEntitlement(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	capability := services.Capability(chi.URLParam(r, "capability"))
	d, err := h.entitlements.Resolve(r.Context(), chi.URLParam(r, "caseID"), p, capability)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := map[string]any{"allowed": d.Allowed}
	if d.Reason != services.DenyNone {
		resp["reason"] = string(d.Reason)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req struct {
		PackType string `json:"pack_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url, err := h.entitlements.CreateCheckout(r.Context(), chi.URLParam(r, "caseID"), p, models.PackType(req.PackType))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"checkout_url": url})
}

// AdminUnlock grants a pack without payment. Only allow-listed admins may
// call it; a repeat grant reports granted=false instead of failing.
func (h *Handler) AdminUnlock(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if !h.entitlements.IsAdmin(p) {
		writeError(w, http.StatusForbidden, "admin access required")
		return
	}

	var req struct {
		PackType string `json:"pack_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.entitlements.GrantAdminUnlock(r.Context(), chi.URLParam(r, "caseID"), models.PackType(req.PackType), p)
	if errors.Is(err, common.ErrAlreadyGranted) {
		writeJSON(w, http.StatusOK, map[string]any{"granted": false})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"granted": true})
}

// ---- helpers ----

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service sentinels onto HTTP statuses in one place.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrUnauthenticated), errors.Is(err, common.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, common.ErrEntitlementDenied):
		writeError(w, http.StatusForbidden, "not entitled")
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrAlreadyLocked),
		errors.Is(err, common.ErrAlreadyConfirmed),
		errors.Is(err, common.ErrAlreadyGranted),
		errors.Is(err, common.ErrPhaseOrderViolation):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrPhaseLocked):
		writeError(w, http.StatusLocked, "phase is sealed")
	case errors.Is(err, common.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream dependency failed")
	default:
		h.logger.Error(r.Context(), "unhandled service error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
