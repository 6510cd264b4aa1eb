package model

import (
	"strings"
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "PENDING"  // checkout created, awaiting the provider
	PurchaseStatusPaid     PurchaseStatus = "PAID"     // provider confirmed payment
	PurchaseStatusFailed   PurchaseStatus = "FAILED"   // provider rejected or checkout could not be created
	PurchaseStatusCanceled PurchaseStatus = "CANCELED" // user or provider canceled
)

// NormalizeStatus maps free-form provider status text onto our enum.
// Order matters: "PAID"/"SUCCESS" win over "FAILED", which wins over "CANCEL".
func NormalizeStatus(raw string) PurchaseStatus {
	s := strings.ToUpper(raw)
	switch {
	case strings.Contains(s, "PAID"), strings.Contains(s, "SUCCESS"):
		return PurchaseStatusPaid
	case strings.Contains(s, "FAILED"):
		return PurchaseStatusFailed
	case strings.Contains(s, "CANCEL"):
		return PurchaseStatusCanceled
	default:
		return PurchaseStatusPending
	}
}

// IsTerminal reports whether no further transitions are allowed (PAID may still be re-confirmed).
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusPaid || s == PurchaseStatusFailed || s == PurchaseStatusCanceled
}

// CanTransition reports whether a purchase in status s may move to next.
func (s PurchaseStatus) CanTransition(next PurchaseStatus) bool {
	switch s {
	case PurchaseStatusPending:
		return next != PurchaseStatusPending
	case PurchaseStatusPaid:
		return next == PurchaseStatusPaid
	default:
		return false
	}
}

// Purchase is one payment attempt for a credit bundle.
type Purchase struct {
	ID          string
	UserID      string
	Amount      int64 // minor units
	Currency    string
	Credits     int64
	Status      PurchaseStatus
	Provider    string
	ProviderRef *string
	CheckoutURL string

	// pricing snapshot at checkout time, decimal strings
	UnitPrice string
	Subtotal  string

	// Credited is the persisted idempotency marker for finalization.
	Credited   bool
	CreditedAt *time.Time
	PaidAt     *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *Purchase) Ref() string {
	if p == nil || p.ProviderRef == nil {
		return ""
	}
	return *p.ProviderRef
}

type PurchaseEventSource string

const (
	EventSourceCheckout PurchaseEventSource = "checkout"
	EventSourceWebhook  PurchaseEventSource = "webhook"
	EventSourcePoll     PurchaseEventSource = "poll"
	EventSourceFinalize PurchaseEventSource = "finalize"
)

// PurchaseEvent is an append-only audit record of what a provider told us about a purchase.
type PurchaseEvent struct {
	ID         string
	PurchaseID string
	Source     PurchaseEventSource
	RawStatus  string
	Status     PurchaseStatus
	Payload    map[string]any
	CreatedAt  time.Time
}
