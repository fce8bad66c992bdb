package payment

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

type paymentIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway charges through a confirmed PaymentIntent with a fixed
// payment method. The booking reference is the idempotency key, so a
// retried charge never bills twice.
type StripeGateway struct {
	intents       paymentIntents
	paymentMethod string
	currency      string
}

func NewStripeGateway(key, paymentMethod string) *StripeGateway {
	return newStripeGateway(client.New(key, nil).PaymentIntents, paymentMethod)
}

func newStripeGateway(intents paymentIntents, paymentMethod string) *StripeGateway {
	return &StripeGateway{
		intents:       intents,
		paymentMethod: paymentMethod,
		currency:      string(stripe.CurrencyUSD),
	}
}

func (g *StripeGateway) Charge(ctx context.Context, reference string, amount decimal.Decimal) (bool, error) {
	cents := amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if cents <= 0 {
		return false, errors.Newf("charge amount %s must be positive", amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(cents),
		Currency:      stripe.String(g.currency),
		PaymentMethod: stripe.String(g.paymentMethod),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(reference)
	params.AddMetadata("booking_id", reference)

	pi, err := g.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return false, nil
		}
		return false, errors.Wrap(err, "create payment intent")
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}
