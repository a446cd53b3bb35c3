package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/rentproof/rentproof/internal/server/models"
)

// newCheckoutSession is a seam for testing without the Stripe API.
var newCheckoutSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

// StripeConfig carries the Stripe settings.
type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   string
}

// StripeCheckout implements CheckoutProvider on Stripe hosted checkout.
type StripeCheckout struct {
	cfg StripeConfig
}

// NewStripeCheckout constructs a StripeCheckout and sets the API key.
func NewStripeCheckout(cfg StripeConfig) *StripeCheckout {
	stripe.Key = cfg.SecretKey
	return &StripeCheckout{cfg: cfg}
}

func (s *StripeCheckout) CreateSession(ctx context.Context, caseID, userID string, pack models.PackType, amountCents int64) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.cfg.SuccessURL),
		CancelURL:  stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(s.cfg.Currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(string(pack)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("case_id", caseID)
	params.AddMetadata("user_id", userID)
	params.AddMetadata("pack_type", string(pack))

	sess, err := newCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}
