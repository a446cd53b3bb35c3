package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentproof/rentproof/internal/common"
	"github.com/rentproof/rentproof/internal/logging"
	"github.com/rentproof/rentproof/internal/server/models"
)

type fakeCheckout struct {
	err      error
	sessions int
}

func (f *fakeCheckout) CreateSession(ctx context.Context, caseID, userID string, pack models.PackType, amountCents int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sessions++
	return fmt.Sprintf("https://checkout.example/%s/%s", caseID, pack), nil
}

func newTestEntitlements(t *testing.T, adminEmails ...string) (*EntitlementService, *fakeRepoManager, *fakeCheckout) {
	t.Helper()
	repos := newFakeRepoManager()
	logger := logging.NewNoopLogger()
	audit := NewAuditService(nil, repos, logger)
	checkout := &fakeCheckout{}
	svc := NewEntitlementService(nil, repos, checkout, audit, logger, adminEmails)
	return svc, repos, checkout
}

func TestIsAdmin(t *testing.T) {
	svc, _, _ := newTestEntitlements(t, "Ops@Example.com", " second@example.com ")

	assert.True(t, svc.IsAdmin(models.Principal{Email: "ops@example.com"}))
	assert.True(t, svc.IsAdmin(models.Principal{Email: "OPS@EXAMPLE.COM"}))
	assert.True(t, svc.IsAdmin(models.Principal{Email: "second@example.com"}))
	assert.False(t, svc.IsAdmin(models.Principal{Email: "ops@example.com.attacker.net"}))
	assert.False(t, svc.IsAdmin(models.Principal{Email: ""}))
}

func TestResolveAdminBypass(t *testing.T) {
	svc, _, _ := newTestEntitlements(t, "ops@example.com")

	// No case, no purchases; admin status alone decides.
	d, err := svc.Resolve(context.Background(), "missing-case", models.Principal{UserID: "a1", Email: "ops@example.com"}, CapContractQA)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestResolveByPack(t *testing.T) {
	svc, repos, _ := newTestEntitlements(t)
	ctx := context.Background()
	p := models.Principal{UserID: "u1", Email: "tenant@example.com"}
	caseID := seedCase(t, repos, "u1", models.StayLongTerm)

	d, err := svc.Resolve(ctx, caseID, p, CapContractQA)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyNoPackPurchased, d.Reason)

	require.NoError(t, svc.RecordPurchase(ctx, caseID, models.PackDeposit, 2900, "pi_123"))

	d, err = svc.Resolve(ctx, caseID, p, CapContractQA)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// The deposit pack does not unlock the AI assistant.
	d, err = svc.Resolve(ctx, caseID, p, CapAIAssistant)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyNoPackPurchased, d.Reason)
}

func TestResolveUnknownCase(t *testing.T) {
	svc, _, _ := newTestEntitlements(t)

	d, err := svc.Resolve(context.Background(), "nope", models.Principal{UserID: "u1"}, CapPDFExport)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyNotFound, d.Reason)
}

func TestResolveForeignCase(t *testing.T) {
	svc, repos, _ := newTestEntitlements(t)
	caseID := seedCase(t, repos, "owner", models.StayLongTerm)

	// Someone else's case resolves the same as a missing one.
	d, err := svc.Resolve(context.Background(), caseID, models.Principal{UserID: "intruder"}, CapPDFExport)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, DenyNotFound, d.Reason)
}

func TestResolveAdminOnlyCapability(t *testing.T) {
	svc, repos, _ := newTestEntitlements(t, "ops@example.com")
	ctx := context.Background()
	caseID := seedCase(t, repos, "u1", models.StayLongTerm)

	d, err := svc.Resolve(ctx, caseID, models.Principal{UserID: "u1", Email: "tenant@example.com"}, CapAdminUnlock)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = svc.Resolve(ctx, caseID, models.Principal{UserID: "a1", Email: "ops@example.com"}, CapAdminUnlock)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGrantAdminUnlockIdempotent(t *testing.T) {
	svc, repos, _ := newTestEntitlements(t, "ops@example.com")
	ctx := context.Background()
	admin := models.Principal{UserID: "a1", Email: "ops@example.com"}
	caseID := seedCase(t, repos, "u1", models.StayLongTerm)

	require.NoError(t, svc.GrantAdminUnlock(ctx, caseID, models.PackBundle, admin))
	assert.Equal(t, 1, repos.al.countAction(caseID, models.AuditPackGranted))

	err := svc.GrantAdminUnlock(ctx, caseID, models.PackBundle, admin)
	assert.ErrorIs(t, err, common.ErrAlreadyGranted)
	// No second grant entry for the same pack.
	assert.Equal(t, 1, repos.al.countAction(caseID, models.AuditPackGranted))

	packs, err := repos.p.ListPacks(ctx, caseID)
	require.NoError(t, err)
	assert.Equal(t, []models.PackType{models.PackBundle}, packs)
}

func TestGrantAdminUnlockUnknownPack(t *testing.T) {
	svc, repos, _ := newTestEntitlements(t, "ops@example.com")
	caseID := seedCase(t, repos, "u1", models.StayLongTerm)

	err := svc.GrantAdminUnlock(context.Background(), caseID, models.PackType("gold_pack"), models.Principal{Email: "ops@example.com"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRecordPurchaseDuplicateIsNoop(t *testing.T) {
	svc, repos, _ := newTestEntitlements(t)
	ctx := context.Background()
	caseID := seedCase(t, repos, "u1", models.StayLongTerm)

	require.NoError(t, svc.RecordPurchase(ctx, caseID, models.PackCheckin, 1900, "pi_1"))
	require.NoError(t, svc.RecordPurchase(ctx, caseID, models.PackCheckin, 1900, "pi_2"))

	packs, err := repos.p.ListPacks(ctx, caseID)
	require.NoError(t, err)
	assert.Len(t, packs, 1)
}

func TestCreateCheckout(t *testing.T) {
	svc, repos, checkout := newTestEntitlements(t)
	ctx := context.Background()
	p := models.Principal{UserID: "u1"}
	caseID := seedCase(t, repos, "u1", models.StayLongTerm)

	url, err := svc.CreateCheckout(ctx, caseID, p, models.PackDeposit)
	require.NoError(t, err)
	assert.Contains(t, url, caseID)
	assert.Equal(t, 1, checkout.sessions)
	assert.Equal(t, 1, repos.al.countAction(caseID, models.AuditCheckoutCreated))
}

func TestCreateCheckoutAlreadyHeld(t *testing.T) {
	svc, repos, checkout := newTestEntitlements(t)
	ctx := context.Background()
	p := models.Principal{UserID: "u1"}
	caseID := seedCase(t, repos, "u1", models.StayLongTerm)

	require.NoError(t, svc.RecordPurchase(ctx, caseID, models.PackDeposit, 2900, "pi_1"))

	_, err := svc.CreateCheckout(ctx, caseID, p, models.PackDeposit)
	assert.ErrorIs(t, err, common.ErrAlreadyGranted)
	assert.Equal(t, 0, checkout.sessions)
}

func TestCreateCheckoutUpstreamFailure(t *testing.T) {
	svc, repos, checkout := newTestEntitlements(t)
	checkout.err = errors.New("stripe: api unavailable")
	caseID := seedCase(t, repos, "u1", models.StayLongTerm)

	_, err := svc.CreateCheckout(context.Background(), caseID, models.Principal{UserID: "u1"}, models.PackBundle)
	assert.ErrorIs(t, err, common.ErrUpstream)
	assert.Equal(t, 0, repos.al.countAction(caseID, models.AuditCheckoutCreated))
}

func TestCreateCheckoutUnknownPack(t *testing.T) {
	svc, repos, _ := newTestEntitlements(t)
	caseID := seedCase(t, repos, "u1", models.StayLongTerm)

	_, err := svc.CreateCheckout(context.Background(), caseID, models.Principal{UserID: "u1"}, models.PackType("gold_pack"))
	assert.ErrorIs(t, err, common.ErrValidation)
}
