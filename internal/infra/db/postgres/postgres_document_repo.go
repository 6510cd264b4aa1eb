package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
)

var _ repository.DocumentRepository = (*documentRepo)(nil)

type documentRepo struct{ pool *pgxpool.Pool }

func NewDocumentRepo(pool *pgxpool.Pool) *documentRepo {
	return &documentRepo{pool: pool}
}

func (r *documentRepo) Save(ctx context.Context, tx repository.Tx, d *model.Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	const q = `
INSERT INTO documents (id, user_id, kind, title, content_md, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET title=$4, content_md=$5;`
	_, err := execSQL(ctx, r.pool, tx, q, d.ID, d.UserID, d.Kind, d.Title, d.ContentMD, d.CreatedAt)
	return mapExecErr(err)
}

func (r *documentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	const q = `SELECT id, user_id, kind, title, content_md, created_at FROM documents WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var d model.Document
	if err := row.Scan(&d.ID, &d.UserID, &d.Kind, &d.Title, &d.ContentMD, &d.CreatedAt); err != nil {
		return nil, mapScanErr(err, domain.ErrDocumentNotFound)
	}
	return &d, nil
}

func (r *documentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, user_id, kind, title, content_md, created_at
  FROM documents WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Kind, &d.Title, &d.ContentMD, &d.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}
