package repository

import (
	"context"

	"jobmatchly/internal/domain/model"
)

// LedgerRepository is append-only: there is no update or delete.
type LedgerRepository interface {
	Append(ctx context.Context, tx Tx, e *model.LedgerEntry) error
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.LedgerEntry, error)
	SumByUser(ctx context.Context, tx Tx, userID string) (int64, error)
	SummaryByUser(ctx context.Context, tx Tx, userID string) (*model.LedgerSummary, error)
}
