package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type LedgerEntryType string

const (
	LedgerSignup   LedgerEntryType = "signup"
	LedgerPurchase LedgerEntryType = "purchase"
	LedgerSpend    LedgerEntryType = "spend"
	LedgerRefund   LedgerEntryType = "refund"
	LedgerGrant    LedgerEntryType = "grant"
)

// LedgerEntry is an immutable record of one signed balance change.
type LedgerEntry struct {
	ID        string
	UserID    string
	Credits   int64 // negative = consumption
	Type      LedgerEntryType
	Reference string
	CreatedAt time.Time
}

// NewLedgerEntry stamps the entry with a time-sortable ULID.
func NewLedgerEntry(userID string, delta int64, typ LedgerEntryType, reference string) *LedgerEntry {
	now := time.Now().UTC()
	return &LedgerEntry{
		ID:        NewULID(now),
		UserID:    userID,
		Credits:   delta,
		Type:      typ,
		Reference: reference,
		CreatedAt: now,
	}
}

// NewULID returns a time-sortable identifier for append-only rows.
func NewULID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// LedgerSummary aggregates entries per type.
type LedgerSummary struct {
	UserID string
	ByType map[LedgerEntryType]int64
	Total  int64
}

// Reconciliation compares the cached balance against the ledger.
type Reconciliation struct {
	UserID    string
	Balance   int64
	LedgerSum int64
	Drift     int64
}

func (r Reconciliation) Consistent() bool { return r.Drift == 0 }
