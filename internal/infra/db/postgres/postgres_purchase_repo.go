package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*purchaseRepo)(nil)

type purchaseRepo struct{ pool *pgxpool.Pool }

func NewPurchaseRepo(pool *pgxpool.Pool) *purchaseRepo {
	return &purchaseRepo{pool: pool}
}

const purchaseColumns = `id, user_id, amount, currency, credits, status, provider, provider_ref, checkout_url,
  unit_price::text, subtotal::text, credited, credited_at, paid_at, created_at, updated_at`

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	p := &model.Purchase{}
	err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.Currency, &p.Credits, &p.Status, &p.Provider, &p.ProviderRef,
		&p.CheckoutURL, &p.UnitPrice, &p.Subtotal, &p.Credited, &p.CreditedAt, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *purchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	const q = `
INSERT INTO purchases (
  id, user_id, amount, currency, credits, status, provider, provider_ref, checkout_url,
  unit_price, subtotal, credited, credited_at, paid_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  status=$6, provider=$7, provider_ref=$8, checkout_url=$9, paid_at=$14, updated_at=$16;`
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.Amount, p.Currency, p.Credits, p.Status, p.Provider,
		p.ProviderRef, p.CheckoutURL, p.UnitPrice, p.Subtotal, p.Credited, p.CreditedAt, p.PaidAt, p.CreatedAt, p.UpdatedAt)
	return mapExecErr(err)
}

func (r *purchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error) {
	q := forUpdate(`SELECT `+purchaseColumns+` FROM purchases WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := scanPurchase(row)
	if err != nil {
		return nil, mapScanErr(err, domain.ErrPurchaseNotFound)
	}
	return p, nil
}

func (r *purchaseRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, ref string) (*model.Purchase, error) {
	q := forUpdate(`SELECT `+purchaseColumns+` FROM purchases WHERE provider_ref=$1 LIMIT 1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, err
	}
	p, err := scanPurchase(row)
	if err != nil {
		return nil, mapScanErr(err, domain.ErrPurchaseNotFound)
	}
	return p, nil
}

func (r *purchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Purchase, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2;`
	return r.list(ctx, tx, q, userID, limit)
}

func (r *purchaseRepo) SetProviderRef(ctx context.Context, tx repository.Tx, id, provider, ref, checkoutURL string) error {
	const q = `UPDATE purchases SET provider=$2, provider_ref=$3, checkout_url=$4, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, provider, ref, checkoutURL)
	if err != nil {
		return mapExecErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPurchaseNotFound
	}
	return nil
}

func (r *purchaseRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PurchaseStatus) (bool, error) {
	const q = `UPDATE purchases SET status=$2, updated_at=NOW() WHERE id=$1 AND status='PENDING';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		return false, mapExecErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *purchaseRepo) MarkCredited(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `
UPDATE purchases
   SET status='PAID', paid_at=COALESCE(paid_at, $2), credited=TRUE, credited_at=$2, updated_at=NOW()
 WHERE id=$1 AND credited=FALSE;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, at)
	if err != nil {
		return mapExecErr(err)
	}
	if tag.RowsAffected() == 0 {
		// Already credited or gone; the caller holds the row lock so this is a bug upstream.
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *purchaseRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + purchaseColumns + ` FROM purchases
 WHERE status='PENDING' AND provider_ref IS NOT NULL AND created_at < $1
 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *purchaseRepo) ListPaidUncredited(ctx context.Context, tx repository.Tx, limit int) ([]*model.Purchase, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + purchaseColumns + ` FROM purchases
 WHERE status='PAID' AND credited=FALSE ORDER BY updated_at ASC LIMIT $1;`
	return r.list(ctx, tx, q, limit)
}

func (r *purchaseRepo) list(ctx context.Context, tx repository.Tx, q string, args ...any) ([]*model.Purchase, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, mapScanErr(err, domain.ErrPurchaseNotFound)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
