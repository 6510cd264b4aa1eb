package repository

import (
	"context"

	"jobmatchly/internal/domain/model"
)

type DocumentRepository interface {
	Save(ctx context.Context, tx Tx, d *model.Document) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Document, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Document, error)
}
