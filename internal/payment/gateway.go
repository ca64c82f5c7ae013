// Package payment wraps the external payment gateway behind a narrow
// interface: create an intent for an amount, retrieve an intent's status.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// IntentStatusSucceeded is the gateway status that marks a completed payment
const IntentStatusSucceeded = "succeeded"

// Intent is the gateway's view of a single payment attempt
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
}

// Gateway is the payment gateway client. Amounts are decimal currency units;
// implementations convert to whatever minor unit the gateway expects.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// StripeGateway implements Gateway against the Stripe API with a bounded
// per-call HTTP timeout.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a Stripe-backed gateway
func NewStripeGateway(secretKey string, timeout time.Duration) *StripeGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))

	return &StripeGateway{api: api}
}

// CreateIntent creates a payment intent for amount in the given currency
func (g *StripeGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(toMinorUnits(amount)),
		Currency: stripe.String(currency),
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return fromStripeIntent(intent), nil
}

// RetrieveIntent fetches the current state of a payment intent
func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}

	intent, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}

	return fromStripeIntent(intent), nil
}

func fromStripeIntent(intent *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
		Amount:       intent.Amount,
	}
}

// toMinorUnits converts a decimal currency amount to gateway minor units (cents)
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
