package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/charge"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgstripe "github.com/angelmondragon/boutique-checkout/pkg/stripe"
)

// IntentAPI is the subset of Stripe the bridge calls.
type IntentAPI interface {
	CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	UpdateIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetCharge(ctx context.Context, id string, params *stripe.ChargeParams) (*stripe.Charge, error)
}

type stripeIntentAPI struct{}

// NewStripeAPI returns the live IntentAPI. The client must be initialized so
// the package-level key is set.
func NewStripeAPI(client *pkgstripe.Client) IntentAPI {
	if client == nil {
		return nil
	}
	return stripeIntentAPI{}
}

func (stripeIntentAPI) CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

func (stripeIntentAPI) UpdateIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.Update(id, params)
}

func (stripeIntentAPI) GetCharge(ctx context.Context, id string, params *stripe.ChargeParams) (*stripe.Charge, error) {
	if params != nil {
		params.Context = ctx
	}
	return charge.Get(id, params)
}
