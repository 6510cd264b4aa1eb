package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedgerRepo(pool *pgxpool.Pool) *ledgerRepo {
	return &ledgerRepo{pool: pool}
}

func (r *ledgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	if e.ID == "" {
		e.ID = model.NewULID(time.Now())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO credit_ledger (id, user_id, credits, type, reference, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.UserID, e.Credits, e.Type, e.Reference, e.CreatedAt)
	return mapExecErr(err)
}

// ListByUser returns newest first; ULIDs sort by creation time.
func (r *ledgerRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, user_id, credits, type, reference, created_at
  FROM credit_ledger WHERE user_id=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Credits, &e.Type, &e.Reference, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *ledgerRepo) SumByUser(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(credits),0) FROM credit_ledger WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func (r *ledgerRepo) SummaryByUser(ctx context.Context, tx repository.Tx, userID string) (*model.LedgerSummary, error) {
	const q = `SELECT type, COALESCE(SUM(credits),0) FROM credit_ledger WHERE user_id=$1 GROUP BY type;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	s := &model.LedgerSummary{UserID: userID, ByType: map[model.LedgerEntryType]int64{}}
	for rows.Next() {
		var (
			typ model.LedgerEntryType
			sum int64
		)
		if err := rows.Scan(&typ, &sum); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		s.ByType[typ] = sum
		s.Total += sum
	}
	return s, rows.Err()
}
