package adapter

import (
	"context"
)

// CheckoutRequest is what we ask a provider to charge.
type CheckoutRequest struct {
	PurchaseID  string
	UserEmail   string
	AmountMinor int64
	Currency    string
	Credits     int64
	Description string
}

// CheckoutSession is the provider's answer: a reference to reconcile against
// and a URL to send the user to.
type CheckoutSession struct {
	Reference string
	URL       string
}

// ProviderStatus is the provider's view of a payment. RawStatus is free-form
// provider text; callers normalize it.
type ProviderStatus struct {
	Reference string
	RawStatus string
	Payload   map[string]any
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	GetStatus(ctx context.Context, reference string) (ProviderStatus, error)
}
