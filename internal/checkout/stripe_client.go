package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/carebridgehealth/carebridge-backend/pkg/stripe"
)

// StripeCheckoutClient exposes the subset of Stripe operations the checkout
// service requires.
type StripeCheckoutClient interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
}

type stripeClientWrapper struct {
	api *stripe.Client
}

// NewStripeClient wraps the provided Stripe client so the checkout service can
// be tested without talking to Stripe.
func NewStripeClient(client *pkgstripe.Client) StripeCheckoutClient {
	if client == nil || client.API() == nil {
		return nil
	}
	return &stripeClientWrapper{api: client.API()}
}

func (w *stripeClientWrapper) CreateSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	return w.api.V1CheckoutSessions.Create(ctx, params)
}
