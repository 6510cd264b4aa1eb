package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
)

var _ repository.PurchaseEventRepository = (*purchaseEventRepo)(nil)

type purchaseEventRepo struct{ pool *pgxpool.Pool }

func NewPurchaseEventRepo(pool *pgxpool.Pool) *purchaseEventRepo {
	return &purchaseEventRepo{pool: pool}
}

func (r *purchaseEventRepo) Append(ctx context.Context, tx repository.Tx, e *model.PurchaseEvent) error {
	if e.ID == "" {
		e.ID = model.NewULID(time.Now())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	payload := []byte("{}")
	if len(e.Payload) > 0 {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return domain.ErrInvalidArgument
		}
		payload = b
	}
	const q = `
INSERT INTO purchase_events (id, purchase_id, source, raw_status, status, payload, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.PurchaseID, e.Source, e.RawStatus, e.Status, payload, e.CreatedAt)
	return mapExecErr(err)
}

func (r *purchaseEventRepo) ListByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) ([]*model.PurchaseEvent, error) {
	const q = `
SELECT id, purchase_id, source, raw_status, status, payload, created_at
  FROM purchase_events WHERE purchase_id=$1 ORDER BY id ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, purchaseID)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.PurchaseEvent
	for rows.Next() {
		var (
			e   model.PurchaseEvent
			raw []byte
		)
		if err := rows.Scan(&e.ID, &e.PurchaseID, &e.Source, &e.RawStatus, &e.Status, &raw, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &e.Payload)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
