package models

import "time"

// PackType names a purchasable capability bundle.
type PackType string

const (
	PackCheckin          PackType = "checkin_pack"
	PackDeposit          PackType = "deposit_pack"
	PackBundle           PackType = "bundle_pack"
	PackShortStay        PackType = "short_stay"
	PackRelatedContracts PackType = "related_contracts"
)

// KnownPack reports whether t is one of the sellable pack types.
func KnownPack(t PackType) bool {
	switch t {
	case PackCheckin, PackDeposit, PackBundle, PackShortStay, PackRelatedContracts:
		return true
	}
	return false
}

// Purchase grants a pack to a case. At most one row exists per
// (case, pack type); re-granting an already-held pack is a no-op.
// Purchases are retained for billing history even after case deletion.
type Purchase struct {
	ID          string
	CaseID      string
	PackType    PackType
	AmountCents int64
	Currency    string
	PaymentRef  string
	CreatedAt   time.Time
}
