package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and hands the
// underlying handle to repositories through tx.
//
// Repositories that receive a live transaction lock the rows they read
// (SELECT ... FOR UPDATE), so read-check-write sequences inside fn cannot
// interleave with a concurrent caller. Repositories MUST accept NoTX (nil)
// and fall back to the pool.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		p, err := purchases.FindByID(ctx, tx, id)
//		...
//		return err
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
