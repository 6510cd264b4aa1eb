package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jobmatchly/internal/config"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
	"jobmatchly/internal/infra/sched"
	"jobmatchly/internal/infra/worker"
	"jobmatchly/internal/usecase"
)

type stuckPurchases struct {
	repository.PurchaseRepository
}

func (stuckPurchases) ListPaidUncredited(ctx context.Context, tx repository.Tx, limit int) ([]*model.Purchase, error) {
	return []*model.Purchase{{ID: "p1"}}, nil
}

func (stuckPurchases) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	return nil, nil
}

// slowFinalizer blocks in Finalize until released, then queues a receipt.
type slowFinalizer struct {
	usecase.PurchaseUseCase
	receipts *worker.Pool
	entered  chan struct{}
	release  chan struct{}
	sent     atomic.Int32
	dropped  atomic.Int32
	once     atomic.Bool
}

func (f *slowFinalizer) Finalize(ctx context.Context, id string) (*usecase.FinalizeResult, error) {
	if f.once.CompareAndSwap(false, true) {
		close(f.entered)
	}
	<-f.release
	err := f.receipts.Submit(func(context.Context) error {
		f.sent.Add(1)
		return nil
	})
	if err != nil {
		f.dropped.Add(1)
	}
	return &usecase.FinalizeResult{Outcome: usecase.OutcomeCredited}, nil
}

func TestApp_CloseWaitsForReconciler(t *testing.T) {
	logger := zerolog.Nop()
	receipts := worker.NewPool("receipts", 1, &logger)
	uc := &slowFinalizer{receipts: receipts, entered: make(chan struct{}), release: make(chan struct{})}
	app := &App{
		Receipts:   receipts,
		Reconciler: sched.NewPaymentReconciler(uc, stuckPurchases{}, config.WorkerConfig{ReconcileInterval: 5 * time.Millisecond}, &logger),
		log:        &logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)

	select {
	case <-uc.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler never reached Finalize")
	}
	cancel()

	closed := make(chan struct{})
	go func() {
		app.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a finalize was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(uc.release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the reconciler stopped")
	}

	if uc.dropped.Load() != 0 {
		t.Errorf("receipt queued by an in-flight finalize was dropped")
	}
	if uc.sent.Load() != 1 {
		t.Errorf("expected the receipt to be sent before Close returned, got %d", uc.sent.Load())
	}
}
