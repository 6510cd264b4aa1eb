// Package pricing computes credit bundle prices. All functions are pure and
// coerce bad input into range instead of failing.
package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// MinCredits is the smallest bundle sold; smaller requests are upgraded.
	MinCredits = 3
	// TierBreakpoint is the first quantity that gets the discounted unit price.
	TierBreakpoint = 10
	Currency       = "USD"
)

var (
	LowTierUnitPriceUSD  = decimal.RequireFromString("1.20")
	HighTierUnitPriceUSD = decimal.RequireFromString("1.00")

	hundred = decimal.NewFromInt(100)
)

// Quote is the full pricing snapshot for a checkout.
type Quote struct {
	Credits     int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	AmountMinor int64
	Currency    string
}

// PricePerCreditUSD returns the flat unit price for a bundle of the given size.
func PricePerCreditUSD(credits int) decimal.Decimal {
	if credits >= TierBreakpoint {
		return HighTierUnitPriceUSD
	}
	return LowTierUnitPriceUSD
}

// ClampCredits floors the requested quantity and lifts it to MinCredits.
// NaN and infinities are treated as the minimum.
func ClampCredits(credits float64) int {
	if math.IsNaN(credits) || math.IsInf(credits, 0) {
		return MinCredits
	}
	n := math.Floor(credits)
	if n < MinCredits {
		return MinCredits
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// ComputeSubtotalUSD prices the clamped quantity, rounded to cents.
func ComputeSubtotalUSD(credits float64) decimal.Decimal {
	n := ClampCredits(credits)
	return PricePerCreditUSD(n).Mul(decimal.NewFromInt(int64(n))).Round(2)
}

// ToMinorUnits converts a USD amount into cents, rounding half away from zero.
// Negative amounts become 0.
func ToMinorUnits(amountUSD decimal.Decimal) int64 {
	if amountUSD.IsNegative() {
		return 0
	}
	return amountUSD.Mul(hundred).Round(0).IntPart()
}

// NewQuote builds the checkout snapshot for a requested quantity.
func NewQuote(credits float64) Quote {
	n := ClampCredits(credits)
	subtotal := ComputeSubtotalUSD(float64(n))
	return Quote{
		Credits:     n,
		UnitPrice:   PricePerCreditUSD(n),
		Subtotal:    subtotal,
		AmountMinor: ToMinorUnits(subtotal),
		Currency:    Currency,
	}
}
