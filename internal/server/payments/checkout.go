// Package payments defines the payment-checkout collaborator. The server
// only creates hosted checkout sessions; it reacts to purchase records, not
// to provider webhooks.
package payments

import (
	"context"

	"github.com/rentproof/rentproof/internal/server/models"
)

// PackPrices is the price table in cents, keyed by pack type.
var PackPrices = map[models.PackType]int64{
	models.PackCheckin:          1900,
	models.PackDeposit:          2900,
	models.PackBundle:           3900,
	models.PackShortStay:        1400,
	models.PackRelatedContracts: 900,
}

// CheckoutProvider creates a hosted checkout session for a pack and returns
// the URL the client should be redirected to.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, caseID, userID string, pack models.PackType, amountCents int64) (string, error)
}
