package repository

import (
	"context"
	"time"

	"jobmatchly/internal/domain/model"
)

// -----------------------------
// Purchases
// -----------------------------

type PurchaseRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Purchase) error
	// FindByID locks the row when tx is a live transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Purchase, error)
	FindByProviderRef(ctx context.Context, tx Tx, ref string) (*model.Purchase, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Purchase, error)

	SetProviderRef(ctx context.Context, tx Tx, id, provider, ref, checkoutURL string) error
	// UpdateStatusIfPending moves a PENDING purchase to status; false when it was not pending.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PurchaseStatus) (bool, error)
	// MarkCredited sets status PAID, paid_at (if unset), credited and credited_at.
	MarkCredited(ctx context.Context, tx Tx, id string, at time.Time) error

	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Purchase, error)
	ListPaidUncredited(ctx context.Context, tx Tx, limit int) ([]*model.Purchase, error)
}

type PurchaseEventRepository interface {
	Append(ctx context.Context, tx Tx, e *model.PurchaseEvent) error
	ListByPurchase(ctx context.Context, tx Tx, purchaseID string) ([]*model.PurchaseEvent, error)
}
