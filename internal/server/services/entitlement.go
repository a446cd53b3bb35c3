package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/logging"
	"github.com/rentproof/rentproof/internal/server/models"
	"github.com/rentproof/rentproof/internal/server/payments"
	"github.com/rentproof/rentproof/internal/server/repositories/repomanager"
)

// Capability names a gated feature.
type Capability string

const (
	CapContractQA       Capability = "contract_qa"
	CapAIAssistant      Capability = "ai_assistant"
	CapPDFExport        Capability = "pdf_export"
	CapRelatedContracts Capability = "related_contracts"
	CapStorageExtension Capability = "storage_extension"
	CapAdminUnlock      Capability = "admin_unlock"
)

// capabilityPacks maps each capability to the packs that unlock it. Admins
// bypass the table entirely.
var capabilityPacks = map[Capability][]models.PackType{
	CapContractQA:       {models.PackDeposit, models.PackBundle, models.PackShortStay},
	CapAIAssistant:      {models.PackBundle, models.PackShortStay},
	CapPDFExport:        {models.PackCheckin, models.PackDeposit, models.PackBundle},
	CapRelatedContracts: {models.PackRelatedContracts},
	CapStorageExtension: {models.PackBundle},
	CapAdminUnlock:      nil, // admin status only
}

// DenyReason classifies a denied resolution.
type DenyReason string

const (
	DenyNone            DenyReason = ""
	DenyNoPackPurchased DenyReason = "no_pack_purchased"
	DenyNotFound        DenyReason = "not_found"
)

// Decision is the outcome of an entitlement resolution.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// EntitlementService decides, per case and capability, whether the acting
// principal may perform a gated action.
type EntitlementService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	checkout payments.CheckoutProvider
	audit    *AuditService
	logger   logging.Logger

	adminEmails map[string]struct{}
}

// NewEntitlementService constructs an EntitlementService. adminEmails is the
// operator-controlled allow-list; matching is exact and case-insensitive.
func NewEntitlementService(db *sql.DB, repos repomanager.RepositoryManager, checkout payments.CheckoutProvider, audit *AuditService, logger logging.Logger, adminEmails []string) *EntitlementService {
	set := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return &EntitlementService{
		db: db, repos: repos, checkout: checkout, audit: audit, logger: logger,
		adminEmails: set,
	}
}

// IsAdmin is the single predicate deciding elevated trust.
func (s *EntitlementService) IsAdmin(p models.Principal) bool {
	_, ok := s.adminEmails[strings.ToLower(p.Email)]
	return ok
}

// Resolve gates a capability for a case. Admins are allowed unconditionally;
// everyone else must own the case and hold a pack that unlocks the
// capability.
func (s *EntitlementService) Resolve(ctx context.Context, caseID string, p models.Principal, capability Capability) (Decision, error) {
	if s.IsAdmin(p) {
		return Decision{Allowed: true}, nil
	}

	if _, err := s.repos.Cases(s.db).GetForUser(ctx, caseID, p.UserID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Decision{Reason: DenyNotFound}, nil
		}
		return Decision{}, err
	}

	required := capabilityPacks[capability]
	if len(required) == 0 {
		// Admin-only capability; the admin branch already returned.
		return Decision{Reason: DenyNoPackPurchased}, nil
	}

	held, err := s.repos.Purchases(s.db).ListPacks(ctx, caseID)
	if err != nil {
		return Decision{}, fmt.Errorf("list packs: %w", err)
	}
	for _, have := range held {
		for _, want := range required {
			if have == want {
				return Decision{Allowed: true}, nil
			}
		}
	}
	return Decision{Reason: DenyNoPackPurchased}, nil
}

// GrantAdminUnlock inserts a zero-amount purchase row unless the pack is
// already held. Returns common.ErrAlreadyGranted on a duplicate, which
// callers may treat as success-with-no-op.
func (s *EntitlementService) GrantAdminUnlock(ctx context.Context, caseID string, pack models.PackType, actor models.Principal) error {
	if !models.KnownPack(pack) {
		return common.ErrValidation
	}

	inserted, err := s.repos.Purchases(s.db).Insert(ctx, &models.Purchase{
		ID:         uuid.NewString(),
		CaseID:     caseID,
		PackType:   pack,
		Currency:   "eur",
		PaymentRef: "admin_unlock",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		return common.ErrAlreadyGranted
	}

	s.audit.Record(ctx, caseID, actor, models.AuditPackGranted, map[string]any{
		"pack_type": pack,
		"amount":    0,
	})
	return nil
}

// RecordPurchase stores a paid purchase. Duplicates are a silent no-op since
// the desired end state is already true.
func (s *EntitlementService) RecordPurchase(ctx context.Context, caseID string, pack models.PackType, amountCents int64, paymentRef string) error {
	if !models.KnownPack(pack) {
		return common.ErrValidation
	}
	_, err := s.repos.Purchases(s.db).Insert(ctx, &models.Purchase{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		PackType:    pack,
		AmountCents: amountCents,
		Currency:    "eur",
		PaymentRef:  paymentRef,
		CreatedAt:   time.Now().UTC(),
	})
	return err
}

// CreateCheckout verifies ownership and opens a hosted checkout session for
// the pack. Already-held packs short-circuit with common.ErrAlreadyGranted.
func (s *EntitlementService) CreateCheckout(ctx context.Context, caseID string, p models.Principal, pack models.PackType) (string, error) {
	price, ok := payments.PackPrices[pack]
	if !ok {
		return "", common.ErrValidation
	}

	if _, err := s.repos.Cases(s.db).GetForUser(ctx, caseID, p.UserID); err != nil {
		return "", err
	}

	held, err := s.repos.Purchases(s.db).ListPacks(ctx, caseID)
	if err != nil {
		return "", fmt.Errorf("list packs: %w", err)
	}
	for _, have := range held {
		if have == pack {
			return "", common.ErrAlreadyGranted
		}
	}

	url, err := s.checkout.CreateSession(ctx, caseID, p.UserID, pack, price)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}

	s.audit.Record(ctx, caseID, p, models.AuditCheckoutCreated, map[string]any{
		"pack_type": pack,
		"amount":    price,
	})
	return url, nil
}
