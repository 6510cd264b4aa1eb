package usecase

import (
	"context"
	"errors"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
	"jobmatchly/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes account operations used by the API and admin CLI.
type UserUseCase interface {
	// RegisterOrFetch returns the user with this email, creating it with the
	// signup balance (and its ledger entry) when absent.
	RegisterOrFetch(ctx context.Context, email, name string) (*model.User, bool, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userUC struct {
	users         repository.UserRepository
	ledger        repository.LedgerRepository
	tm            repository.TransactionManager
	signupCredits int64
	log           *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, ledger repository.LedgerRepository, tm repository.TransactionManager, signupCredits int64, logger *zerolog.Logger) *userUC {
	return &userUC{
		users:         users,
		ledger:        ledger,
		tm:            tm,
		signupCredits: signupCredits,
		log:           logger,
	}
}

func (u *userUC) RegisterOrFetch(ctx context.Context, email, name string) (*model.User, bool, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	var (
		user    *model.User
		created bool
	)
	// Serializable so two concurrent signups for one email cannot both insert.
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		user, created = nil, false
		existing, err := u.users.FindByEmail(ctx, tx, email)
		if err == nil {
			if name != "" && existing.Name != name {
				existing.Name = name
				if err := u.users.Save(ctx, tx, existing); err != nil {
					u.log.Error().Err(err).Msg("Failed to update user")
					return err
				}
			}
			user = existing
			return nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}

		nu, err := model.NewUser("", email, name, u.signupCredits)
		if err != nil {
			return err
		}
		if err := u.users.Save(ctx, tx, nu); err != nil {
			return err
		}
		// The signup balance is itself a ledger entry so balance == sum(ledger) holds from day one.
		if nu.Credits > 0 {
			if err := u.ledger.Append(ctx, tx, model.NewLedgerEntry(nu.ID, nu.Credits, model.LedgerSignup, "")); err != nil {
				return err
			}
		}
		user, created = nu, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		logging.With(ctx, u.log).Info().Str("user_id", user.ID).Int64("credits", user.Credits).Msg("user registered")
	}
	return user, created, nil
}

func (u *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.Get")()
	return u.users.FindByID(ctx, repository.NoTX, id)
}
