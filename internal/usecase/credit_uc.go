package usecase

import (
	"context"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
	"jobmatchly/internal/infra/logging"
	"jobmatchly/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ CreditUseCase = (*creditUC)(nil)

// CreditUseCase owns every change to a user's balance. Each change writes one
// ledger entry in the same transaction as the balance update.
type CreditUseCase interface {
	// AddCredits applies an unconditional delta of any sign. typ defaults to grant.
	AddCredits(ctx context.Context, userID string, n int64, typ model.LedgerEntryType, reference string) (int64, error)
	// SpendCredits fails with domain.ErrInsufficientCredits when balance < amount.
	SpendCredits(ctx context.Context, userID string, amount int64, reference string) (int64, error)
	RefundCredits(ctx context.Context, userID string, amount int64, reference string) (int64, error)

	Balance(ctx context.Context, userID string) (int64, error)
	Ledger(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error)
	Summary(ctx context.Context, userID string) (*model.LedgerSummary, error)
	// Reconcile compares the balance with the ledger sum. It reports drift and never repairs it.
	Reconcile(ctx context.Context, userID string) (model.Reconciliation, error)
}

type creditUC struct {
	users  repository.UserRepository
	ledger repository.LedgerRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewCreditUseCase(users repository.UserRepository, ledger repository.LedgerRepository, tm repository.TransactionManager, logger *zerolog.Logger) *creditUC {
	return &creditUC{users: users, ledger: ledger, tm: tm, log: logger}
}

var readCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// applyDelta is the single write path for balance changes; callers own the tx.
func applyDelta(ctx context.Context, tx repository.Tx, users repository.UserRepository, ledger repository.LedgerRepository,
	userID string, delta int64, typ model.LedgerEntryType, reference string) (int64, error) {
	balance, err := users.AddCredits(ctx, tx, userID, delta)
	if err != nil {
		return 0, err
	}
	if err := ledger.Append(ctx, tx, model.NewLedgerEntry(userID, delta, typ, reference)); err != nil {
		return 0, err
	}
	return balance, nil
}

func (u *creditUC) AddCredits(ctx context.Context, userID string, n int64, typ model.LedgerEntryType, reference string) (int64, error) {
	defer logging.TraceDuration(u.log, "CreditUC.AddCredits")()

	if userID == "" || typ == model.LedgerSpend {
		return 0, domain.ErrInvalidArgument
	}
	if typ == "" {
		typ = model.LedgerGrant
	}
	if n == 0 {
		return u.Balance(ctx, userID)
	}

	var balance int64
	err := u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		b, err := applyDelta(ctx, tx, u.users, u.ledger, userID, n, typ, reference)
		balance = b
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.AddCredits(string(typ), n)
	logging.With(ctx, u.log).Info().Str("user_id", userID).Int64("delta", n).Str("type", string(typ)).
		Int64("balance", balance).Msg("credits added")
	return balance, nil
}

func (u *creditUC) SpendCredits(ctx context.Context, userID string, amount int64, reference string) (int64, error) {
	defer logging.TraceDuration(u.log, "CreditUC.SpendCredits")()

	if userID == "" || amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}

	var balance int64
	err := u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		b, ok, err := u.users.SpendCredits(ctx, tx, userID, amount)
		if err != nil {
			return err
		}
		balance = b
		if !ok {
			return domain.ErrInsufficientCredits
		}
		return u.ledger.Append(ctx, tx, model.NewLedgerEntry(userID, -amount, model.LedgerSpend, reference))
	})
	if err != nil {
		if err == domain.ErrInsufficientCredits {
			metrics.IncSpendRejected()
			return balance, err
		}
		return 0, err
	}
	metrics.AddCredits(string(model.LedgerSpend), amount)
	return balance, nil
}

func (u *creditUC) RefundCredits(ctx context.Context, userID string, amount int64, reference string) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return u.AddCredits(ctx, userID, amount, model.LedgerRefund, reference)
}

func (u *creditUC) Balance(ctx context.Context, userID string) (int64, error) {
	usr, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return 0, err
	}
	return usr.Credits, nil
}

func (u *creditUC) Ledger(ctx context.Context, userID string, limit int) ([]*model.LedgerEntry, error) {
	if _, err := u.users.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	return u.ledger.ListByUser(ctx, repository.NoTX, userID, limit)
}

func (u *creditUC) Summary(ctx context.Context, userID string) (*model.LedgerSummary, error) {
	if _, err := u.users.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	return u.ledger.SummaryByUser(ctx, repository.NoTX, userID)
}

func (u *creditUC) Reconcile(ctx context.Context, userID string) (model.Reconciliation, error) {
	defer logging.TraceDuration(u.log, "CreditUC.Reconcile")()

	var rec model.Reconciliation
	// The user row lock keeps balance and ledger from moving between the two reads.
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(ctx context.Context, tx repository.Tx) error {
		usr, err := u.users.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		sum, err := u.ledger.SumByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		rec = model.Reconciliation{UserID: userID, Balance: usr.Credits, LedgerSum: sum, Drift: usr.Credits - sum}
		return nil
	})
	if err != nil {
		return model.Reconciliation{}, err
	}
	if !rec.Consistent() {
		metrics.IncLedgerDrift()
		logging.With(ctx, u.log).Warn().Str("user_id", userID).Int64("balance", rec.Balance).
			Int64("ledger_sum", rec.LedgerSum).Int64("drift", rec.Drift).Msg("ledger drift detected")
	}
	return rec, nil
}
