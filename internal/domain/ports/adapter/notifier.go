package adapter

import (
	"context"
	"time"
)

// Receipt is the payload of a "payment received" notification.
type Receipt struct {
	To          string
	Name        string
	PurchaseID  string
	Reference   string
	Credits     int64
	AmountMinor int64
	Currency    string
	Balance     int64
	At          time.Time
}

// ReceiptSender delivers receipts. Failures are the caller's to log; they
// never affect the grant that triggered them.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, r Receipt) error
}
