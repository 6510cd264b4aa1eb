package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jobmatchly/internal/config"
	"jobmatchly/internal/domain/ports/repository"
	"jobmatchly/internal/infra/metrics"
	"jobmatchly/internal/usecase"
)

// PaymentReconciler periodically repairs purchases a webhook never settled:
// stale PENDING purchases are polled at the gateway, and PAID purchases whose
// grant never committed are finalized.
type PaymentReconciler struct {
	uc         usecase.PurchaseUseCase
	purchases  repository.PurchaseRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending purchase must be to poll
	batch      int
	log        *zerolog.Logger
}

// ReconcileReport summarizes one pass.
type ReconcileReport struct {
	Polled    int
	Settled   int
	Finalized int
	Errors    int
}

func NewPaymentReconciler(uc usecase.PurchaseUseCase, purchases repository.PurchaseRepository, cfg config.WorkerConfig, logger *zerolog.Logger) *PaymentReconciler {
	w := &PaymentReconciler{
		uc:         uc,
		purchases:  purchases,
		interval:   cfg.ReconcileInterval,
		staleAfter: cfg.ReconcileStaleAge,
		batch:      cfg.ReconcileBatchSize,
		log:        logger,
	}
	if w.interval <= 0 {
		w.interval = time.Minute
	}
	if w.staleAfter <= 0 {
		w.staleAfter = 10 * time.Minute
	}
	if w.batch <= 0 {
		w.batch = 200
	}
	return w
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single reconciliation pass.
func (w *PaymentReconciler) RunOnce(ctx context.Context) ReconcileReport {
	var rep ReconcileReport

	uncredited, err := w.purchases.ListPaidUncredited(ctx, repository.NoTX, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list paid uncredited failed")
		metrics.IncReconciler("finalize", "error")
		rep.Errors++
	}
	for _, p := range uncredited {
		if ctx.Err() != nil {
			return rep
		}
		if _, err := w.uc.Finalize(ctx, p.ID); err != nil {
			w.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("payment-reconciler: finalize failed")
			metrics.IncReconciler("finalize", "error")
			rep.Errors++
			continue
		}
		metrics.IncReconciler("finalize", "ok")
		rep.Finalized++
	}

	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.purchases.ListPendingOlderThan(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("payment-reconciler: list pending failed")
		metrics.IncReconciler("poll", "error")
		rep.Errors++
		return rep
	}
	for _, p := range pending {
		if ctx.Err() != nil {
			return rep
		}
		res, err := w.uc.Poll(ctx, p.ID)
		rep.Polled++
		if err != nil {
			w.log.Warn().Err(err).Str("purchase_id", p.ID).Msg("payment-reconciler: poll failed")
			metrics.IncReconciler("poll", "error")
			rep.Errors++
			continue
		}
		metrics.IncReconciler("poll", string(res.Outcome))
		if res.Outcome == usecase.OutcomeCredited || res.Outcome == usecase.OutcomeTransitioned {
			rep.Settled++
			w.log.Info().Str("purchase_id", p.ID).Str("status", string(res.Status)).Msg("payment-reconciler: reconciled purchase")
		}
	}
	return rep
}
