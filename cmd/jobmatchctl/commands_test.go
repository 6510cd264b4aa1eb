package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"jobmatchly/internal/config"
	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/infra/sched"
	"jobmatchly/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	usecase.UserUseCase
	registerFn func(ctx context.Context, email, name string) (*model.User, bool, error)
}

func (f *fakeUsers) RegisterOrFetch(ctx context.Context, email, name string) (*model.User, bool, error) {
	return f.registerFn(ctx, email, name)
}

type grantCall struct {
	userID    string
	n         int64
	typ       model.LedgerEntryType
	reference string
}

type fakeCredits struct {
	usecase.CreditUseCase
	grants    []grantCall
	balance   int64
	reconcile map[string]model.Reconciliation
}

func (f *fakeCredits) AddCredits(_ context.Context, userID string, n int64, typ model.LedgerEntryType, reference string) (int64, error) {
	f.grants = append(f.grants, grantCall{userID, n, typ, reference})
	f.balance += n
	return f.balance, nil
}

func (f *fakeCredits) Reconcile(_ context.Context, userID string) (model.Reconciliation, error) {
	rec, ok := f.reconcile[userID]
	if !ok {
		return model.Reconciliation{}, domain.ErrUserNotFound
	}
	return rec, nil
}

func (f *fakeCredits) Summary(_ context.Context, userID string) (*model.LedgerSummary, error) {
	return &model.LedgerSummary{UserID: userID, ByType: map[model.LedgerEntryType]int64{
		model.LedgerSignup: 3, model.LedgerSpend: -1,
	}, Total: 2}, nil
}

type fakePurchases struct {
	usecase.PurchaseUseCase
	finalizeFn func(ctx context.Context, id string) (*usecase.FinalizeResult, error)
}

func (f *fakePurchases) Finalize(ctx context.Context, id string) (*usecase.FinalizeResult, error) {
	return f.finalizeFn(ctx, id)
}

// install swaps the config loader and backend for fakes.
func install(t *testing.T, cfg *config.Config, b *backend) *bool {
	t.Helper()
	origLoad, origOpen := loadConfig, openBackend
	t.Cleanup(func() { loadConfig, openBackend = origLoad, origOpen })

	closed := false
	loadConfig = func(string, bool) (*config.Config, error) { return cfg, nil }
	openBackend = func(context.Context, *config.Config) (*backend, error) {
		b.Close = func() { closed = true }
		return b, nil
	}
	return &closed
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSeedUser(t *testing.T) {
	credits := &fakeCredits{balance: 3}
	users := &fakeUsers{registerFn: func(_ context.Context, email, name string) (*model.User, bool, error) {
		return &model.User{ID: "u1", Email: email, Name: name, Credits: 3}, true, nil
	}}
	closed := install(t, &config.Config{}, &backend{Users: users, Credits: credits})

	out, err := run(t, "seed-user", "--email", "ada@example.com", "--name", "Ada", "--credits", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "created user u1 <ada@example.com> balance=23")
	require.Len(t, credits.grants, 1)
	assert.Equal(t, grantCall{"u1", 20, model.LedgerGrant, "seed"}, credits.grants[0])
	assert.True(t, *closed)
}

func TestSeedUserRequiresEmail(t *testing.T) {
	install(t, &config.Config{}, &backend{})
	_, err := run(t, "seed-user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--email")
}

func TestGrant(t *testing.T) {
	credits := &fakeCredits{balance: 10}
	install(t, &config.Config{}, &backend{Credits: credits})

	out, err := run(t, "grant", "--type", "refund", "--reference", "ticket-9", "--", "u1", "-4")
	require.NoError(t, err)
	assert.Contains(t, out, "user u1 balance=6")
	assert.Equal(t, []grantCall{{"u1", -4, model.LedgerRefund, "ticket-9"}}, credits.grants)

	_, err = run(t, "grant", "u1", "many")
	assert.Error(t, err)

	_, err = run(t, "grant", "--type", "bonus", "u1", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ledger type")
}

func TestFinalize(t *testing.T) {
	purchases := &fakePurchases{finalizeFn: func(_ context.Context, id string) (*usecase.FinalizeResult, error) {
		if id != "p1" {
			return nil, domain.ErrPurchaseNotFound
		}
		return &usecase.FinalizeResult{
			Purchase: &model.Purchase{ID: "p1", UserID: "u1", Status: model.PurchaseStatusPaid, Credited: true},
			Outcome:  usecase.OutcomeCredited,
			Balance:  13,
		}, nil
	}}
	install(t, &config.Config{}, &backend{Purchases: purchases})

	out, err := run(t, "finalize", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome=credited")
	assert.Contains(t, out, "user u1 balance=13")

	_, err = run(t, "finalize", "nope")
	assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)
}

func TestReconcile(t *testing.T) {
	credits := &fakeCredits{reconcile: map[string]model.Reconciliation{
		"good": {UserID: "good", Balance: 2, LedgerSum: 2},
		"bad":  {UserID: "bad", Balance: 5, LedgerSum: 2, Drift: 3},
	}}
	passes := 0
	install(t, &config.Config{}, &backend{
		Credits: credits,
		ReconcilePayments: func(context.Context) sched.ReconcileReport {
			passes++
			return sched.ReconcileReport{Polled: 2, Settled: 1, Finalized: 1}
		},
	})

	out, err := run(t, "reconcile", "good")
	require.NoError(t, err)
	assert.Contains(t, out, "user good balance=2 ledger=2 drift=0 ok")
	assert.Contains(t, out, "signup=3 spend=-1")
	assert.Zero(t, passes)

	out, err = run(t, "reconcile", "--payments", "good", "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 user(s) with ledger drift")
	assert.Contains(t, out, "payments polled=2 settled=1 finalized=1 errors=0")
	assert.Contains(t, out, "drift=3 DRIFT")
	assert.Equal(t, 1, passes)

	_, err = run(t, "reconcile")
	assert.Error(t, err)
}

func TestAdminToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.Security.AdminJWTSecret = "cli_secret"
	install(t, cfg, &backend{})

	out, err := run(t, "admin-token", "--subject", "ops")
	require.NoError(t, err)
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n$`, out)

	cfg.Security.AdminJWTSecret = ""
	_, err = run(t, "admin-token")
	assert.Error(t, err)
}

func TestBootstrapErrorIsReported(t *testing.T) {
	origLoad := loadConfig
	t.Cleanup(func() { loadConfig = origLoad })
	loadConfig = func(string, bool) (*config.Config, error) { return nil, errors.New("missing database.url") }

	_, err := run(t, "finalize", "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: missing database.url")
}
