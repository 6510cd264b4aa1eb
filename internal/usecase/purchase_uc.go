// File: internal/usecase/purchase_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/adapter"
	"jobmatchly/internal/domain/ports/repository"
	"jobmatchly/internal/domain/pricing"
	"jobmatchly/internal/infra/logging"
	"jobmatchly/internal/infra/metrics"
	"jobmatchly/internal/infra/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ PurchaseUseCase = (*purchaseUC)(nil)

// TaskQueue is the part of worker.Pool used for after-commit side effects.
type TaskQueue interface {
	Submit(task worker.Task) error
}

// Outcome tells callers what a finalize, webhook or poll actually did.
type Outcome string

const (
	OutcomeCredited        Outcome = "credited"
	OutcomeAlreadyCredited Outcome = "already_credited"
	OutcomeTransitioned    Outcome = "transitioned"
	OutcomeIgnored         Outcome = "ignored"
	OutcomePending         Outcome = "pending"
	OutcomeInProgress      Outcome = "in_progress"
	OutcomeUnchanged       Outcome = "unchanged"
)

type CheckoutResult struct {
	Purchase    *model.Purchase
	Quote       pricing.Quote
	CheckoutURL string
}

type FinalizeResult struct {
	Purchase *model.Purchase
	Outcome  Outcome
	// Balance is the user's balance after the grant; zero unless Outcome is credited.
	Balance int64
}

type TransitionResult struct {
	Purchase *model.Purchase
	Status   model.PurchaseStatus
	Outcome  Outcome
}

type PurchaseUseCase interface {
	// Checkout quotes the requested credits, persists a PENDING purchase and
	// asks the gateway for a hosted checkout page.
	Checkout(ctx context.Context, userID string, credits float64) (*CheckoutResult, error)
	// Finalize grants a purchase's credits exactly once, no matter how many
	// callers race on it.
	Finalize(ctx context.Context, purchaseID string) (*FinalizeResult, error)
	HandleWebhook(ctx context.Context, providerRef, rawStatus string, payload map[string]any) (*TransitionResult, error)
	// Poll asks the gateway for the status of a PENDING purchase.
	Poll(ctx context.Context, purchaseID string) (*TransitionResult, error)

	Get(ctx context.Context, purchaseID string) (*model.Purchase, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Purchase, error)
	Events(ctx context.Context, purchaseID string) ([]*model.PurchaseEvent, error)
}

type PurchaseOptions struct {
	// PollLockTTL bounds how long one poller holds the per-purchase lock.
	PollLockTTL time.Duration
}

type purchaseUC struct {
	users     repository.UserRepository
	purchases repository.PurchaseRepository
	events    repository.PurchaseEventRepository
	ledger    repository.LedgerRepository
	tm        repository.TransactionManager

	gateway  adapter.PaymentGateway
	locker   adapter.Locker
	receipts adapter.ReceiptSender
	queue    TaskQueue

	opts PurchaseOptions
	log  *zerolog.Logger
}

func NewPurchaseUseCase(
	users repository.UserRepository,
	purchases repository.PurchaseRepository,
	events repository.PurchaseEventRepository,
	ledger repository.LedgerRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	locker adapter.Locker,
	receipts adapter.ReceiptSender,
	queue TaskQueue,
	opts PurchaseOptions,
	logger *zerolog.Logger,
) *purchaseUC {
	if opts.PollLockTTL <= 0 {
		opts.PollLockTTL = 15 * time.Second
	}
	return &purchaseUC{
		users:     users,
		purchases: purchases,
		events:    events,
		ledger:    ledger,
		tm:        tm,
		gateway:   gateway,
		locker:    locker,
		receipts:  receipts,
		queue:     queue,
		opts:      opts,
		log:       logger,
	}
}

func (u *purchaseUC) Checkout(ctx context.Context, userID string, credits float64) (*CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "PurchaseUC.Checkout")()

	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}

	q := pricing.NewQuote(credits)
	now := time.Now()
	p := &model.Purchase{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Amount:    q.AmountMinor,
		Currency:  q.Currency,
		Credits:   int64(q.Credits),
		Status:    model.PurchaseStatusPending,
		Provider:  u.gateway.Name(),
		UnitPrice: q.UnitPrice.StringFixed(2),
		Subtotal:  q.Subtotal.StringFixed(2),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.purchases.Save(ctx, repository.NoTX, p); err != nil {
		u.log.Error().Err(err).Msg("Failed to save purchase")
		return nil, err
	}
	metrics.IncPayment(string(model.PurchaseStatusPending))

	start := time.Now()
	sess, err := u.gateway.CreateCheckout(ctx, adapter.CheckoutRequest{
		PurchaseID:  p.ID,
		UserEmail:   user.Email,
		AmountMinor: p.Amount,
		Currency:    p.Currency,
		Credits:     p.Credits,
		Description: fmt.Sprintf("%d JobMatchly credits", p.Credits),
	})
	metrics.ObserveGateway(u.gateway.Name(), "checkout", time.Since(start), err)
	if err != nil {
		logging.With(logging.WithPurchaseID(ctx, p.ID), u.log).Warn().Err(err).Msg("checkout creation failed")
		if ok, uerr := u.purchases.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PurchaseStatusFailed); uerr != nil {
			u.log.Error().Err(uerr).Str("purchase_id", p.ID).Msg("Failed to mark purchase failed")
		} else if ok {
			p.Status = model.PurchaseStatusFailed
			metrics.IncPayment(string(model.PurchaseStatusFailed))
		}
		u.recordEvent(ctx, p.ID, model.EventSourceCheckout, "checkout_error", model.PurchaseStatusFailed,
			map[string]any{"error": err.Error()})
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	if err := u.purchases.SetProviderRef(ctx, repository.NoTX, p.ID, u.gateway.Name(), sess.Reference, sess.URL); err != nil {
		u.log.Error().Err(err).Str("purchase_id", p.ID).Msg("Failed to store provider reference")
		return nil, err
	}
	ref := sess.Reference
	p.ProviderRef = &ref
	p.CheckoutURL = sess.URL
	u.recordEvent(ctx, p.ID, model.EventSourceCheckout, "created", model.PurchaseStatusPending,
		map[string]any{"reference": ref, "amount_minor": p.Amount, "credits": p.Credits})

	return &CheckoutResult{Purchase: p, Quote: q, CheckoutURL: sess.URL}, nil
}

func (u *purchaseUC) Finalize(ctx context.Context, purchaseID string) (*FinalizeResult, error) {
	defer logging.TraceDuration(u.log, "PurchaseUC.Finalize")()
	ctx = logging.WithPurchaseID(ctx, purchaseID)

	var (
		res       FinalizeResult
		receipt   *adapter.Receipt
		forcePaid bool
	)
	err := u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		res, receipt, forcePaid = FinalizeResult{}, nil, false

		// Row lock: concurrent finalizers queue here and see credited=true once the winner commits.
		p, err := u.purchases.FindByID(ctx, tx, purchaseID)
		if err != nil {
			return err
		}
		if p.Credited {
			res = FinalizeResult{Purchase: p, Outcome: OutcomeAlreadyCredited}
			return nil
		}
		user, err := u.users.FindByID(ctx, tx, p.UserID)
		if err != nil {
			return err
		}

		balance, err := applyDelta(ctx, tx, u.users, u.ledger, p.UserID, p.Credits, model.LedgerPurchase, p.ID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := u.purchases.MarkCredited(ctx, tx, p.ID, now); err != nil {
			return err
		}
		if err := u.events.Append(ctx, tx, &model.PurchaseEvent{
			PurchaseID: p.ID,
			Source:     model.EventSourceFinalize,
			RawStatus:  string(p.Status),
			Status:     model.PurchaseStatusPaid,
			Payload:    map[string]any{"credits": p.Credits, "balance": balance},
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		forcePaid = p.Status != model.PurchaseStatusPaid
		p.Status = model.PurchaseStatusPaid
		p.Credited = true
		p.CreditedAt = &now
		if p.PaidAt == nil {
			p.PaidAt = &now
		}
		res = FinalizeResult{Purchase: p, Outcome: OutcomeCredited, Balance: balance}
		receipt = &adapter.Receipt{
			To:          user.Email,
			Name:        user.Name,
			PurchaseID:  p.ID,
			Reference:   p.Ref(),
			Credits:     p.Credits,
			AmountMinor: p.Amount,
			Currency:    p.Currency,
			Balance:     balance,
			At:          now,
		}
		return nil
	})
	if err != nil {
		metrics.IncFinalize("error")
		if !errors.Is(err, domain.ErrPurchaseNotFound) {
			logging.With(ctx, u.log).Error().Err(err).Msg("Failed to finalize purchase")
		}
		return nil, err
	}

	metrics.IncFinalize(string(res.Outcome))
	if res.Outcome != OutcomeCredited {
		return &res, nil
	}

	p := res.Purchase
	metrics.AddCredits(string(model.LedgerPurchase), p.Credits)
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	if forcePaid {
		metrics.IncPayment(string(model.PurchaseStatusPaid))
	}
	logging.With(logging.WithUserID(ctx, p.UserID), u.log).Info().
		Int64("credits", p.Credits).Int64("balance", res.Balance).Msg("purchase credited")

	u.enqueueReceipt(ctx, *receipt)
	return &res, nil
}

// enqueueReceipt runs after commit. Nothing it does can undo the grant.
func (u *purchaseUC) enqueueReceipt(ctx context.Context, r adapter.Receipt) {
	if u.receipts == nil || u.queue == nil {
		return
	}
	log := logging.With(ctx, u.log)
	err := u.queue.Submit(func(taskCtx context.Context) error {
		if err := u.receipts.SendReceipt(taskCtx, r); err != nil {
			metrics.IncReceipt("failed")
			log.Warn().Err(err).Msg("receipt delivery failed")
			return nil
		}
		metrics.IncReceipt("sent")
		return nil
	})
	if err != nil {
		metrics.IncReceipt("dropped")
		log.Warn().Err(err).Msg("receipt not enqueued")
	}
}

func (u *purchaseUC) HandleWebhook(ctx context.Context, providerRef, rawStatus string, payload map[string]any) (*TransitionResult, error) {
	defer logging.TraceDuration(u.log, "PurchaseUC.HandleWebhook")()

	if providerRef == "" {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.purchases.FindByProviderRef(ctx, repository.NoTX, providerRef)
	if err != nil {
		metrics.IncWebhook("unknown")
		return nil, err
	}
	res, err := u.applyProviderStatus(logging.WithPurchaseID(ctx, p.ID), p, model.EventSourceWebhook, rawStatus, payload)
	if err != nil {
		metrics.IncWebhook("error")
		return nil, err
	}
	metrics.IncWebhook(string(res.Outcome))
	return res, nil
}

func (u *purchaseUC) Poll(ctx context.Context, purchaseID string) (*TransitionResult, error) {
	defer logging.TraceDuration(u.log, "PurchaseUC.Poll")()
	ctx = logging.WithPurchaseID(ctx, purchaseID)

	p, err := u.purchases.FindByID(ctx, repository.NoTX, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.Status == model.PurchaseStatusPaid && !p.Credited {
		// A grant that never committed; finish it.
		fr, err := u.Finalize(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return &TransitionResult{Purchase: fr.Purchase, Status: fr.Purchase.Status, Outcome: fr.Outcome}, nil
	}
	if p.Status != model.PurchaseStatusPending || p.ProviderRef == nil {
		return &TransitionResult{Purchase: p, Status: p.Status, Outcome: OutcomeUnchanged}, nil
	}

	if u.locker != nil {
		key := "poll:" + p.ID
		token, err := u.locker.TryLock(ctx, key, u.opts.PollLockTTL)
		switch {
		case errors.Is(err, domain.ErrLocked):
			return &TransitionResult{Purchase: p, Status: p.Status, Outcome: OutcomeInProgress}, nil
		case err != nil:
			// Without Redis the row lock in Finalize still keeps the grant single.
			logging.With(ctx, u.log).Warn().Err(err).Msg("poll lock unavailable, polling without it")
		default:
			defer func() {
				if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					u.log.Warn().Err(err).Str("key", key).Msg("poll unlock failed")
				}
			}()
		}
	}

	start := time.Now()
	st, err := u.gateway.GetStatus(ctx, p.Ref())
	metrics.ObserveGateway(u.gateway.Name(), "status", time.Since(start), err)
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).Msg("gateway status lookup failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	return u.applyProviderStatus(ctx, p, model.EventSourcePoll, st.RawStatus, st.Payload)
}

// applyProviderStatus is the shared transition path for webhooks and polls.
func (u *purchaseUC) applyProviderStatus(ctx context.Context, p *model.Purchase, source model.PurchaseEventSource, rawStatus string, payload map[string]any) (*TransitionResult, error) {
	status := model.NormalizeStatus(rawStatus)
	if err := u.events.Append(ctx, repository.NoTX, &model.PurchaseEvent{
		PurchaseID: p.ID,
		Source:     source,
		RawStatus:  rawStatus,
		Status:     status,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		u.log.Error().Err(err).Str("purchase_id", p.ID).Msg("Failed to record purchase event")
		return nil, err
	}

	switch status {
	case model.PurchaseStatusPaid:
		if p.Status == model.PurchaseStatusFailed || p.Status == model.PurchaseStatusCanceled {
			logging.With(ctx, u.log).Warn().Str("status", string(p.Status)).Str("source", string(source)).
				Msg("paid signal for a closed purchase ignored")
			return &TransitionResult{Purchase: p, Status: p.Status, Outcome: OutcomeIgnored}, nil
		}
		fr, err := u.Finalize(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return &TransitionResult{Purchase: fr.Purchase, Status: model.PurchaseStatusPaid, Outcome: fr.Outcome}, nil

	case model.PurchaseStatusFailed, model.PurchaseStatusCanceled:
		ok, err := u.purchases.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, status)
		if err != nil {
			return nil, err
		}
		if !ok {
			current, err := u.purchases.FindByID(ctx, repository.NoTX, p.ID)
			if err != nil {
				return nil, err
			}
			return &TransitionResult{Purchase: current, Status: current.Status, Outcome: OutcomeIgnored}, nil
		}
		p.Status = status
		metrics.IncPayment(string(status))
		logging.With(ctx, u.log).Info().Str("status", string(status)).Msg("purchase closed")
		return &TransitionResult{Purchase: p, Status: status, Outcome: OutcomeTransitioned}, nil

	default:
		return &TransitionResult{Purchase: p, Status: p.Status, Outcome: OutcomePending}, nil
	}
}

func (u *purchaseUC) recordEvent(ctx context.Context, purchaseID string, source model.PurchaseEventSource, raw string, status model.PurchaseStatus, payload map[string]any) {
	err := u.events.Append(ctx, repository.NoTX, &model.PurchaseEvent{
		PurchaseID: purchaseID,
		Source:     source,
		RawStatus:  raw,
		Status:     status,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		u.log.Warn().Err(err).Str("purchase_id", purchaseID).Msg("purchase event not recorded")
	}
}

func (u *purchaseUC) Get(ctx context.Context, purchaseID string) (*model.Purchase, error) {
	return u.purchases.FindByID(ctx, repository.NoTX, purchaseID)
}

func (u *purchaseUC) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Purchase, error) {
	if _, err := u.users.FindByID(ctx, repository.NoTX, userID); err != nil {
		return nil, err
	}
	return u.purchases.ListByUser(ctx, repository.NoTX, userID, limit)
}

func (u *purchaseUC) Events(ctx context.Context, purchaseID string) ([]*model.PurchaseEvent, error) {
	if _, err := u.purchases.FindByID(ctx, repository.NoTX, purchaseID); err != nil {
		return nil, err
	}
	return u.events.ListByPurchase(ctx, repository.NoTX, purchaseID)
}
