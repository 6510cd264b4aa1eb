//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/adapter"
	"jobmatchly/internal/domain/ports/repository"
	"jobmatchly/internal/infra/worker"
)

// =============================
// Repositories
// =============================

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	users map[string]model.User

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{users: make(map[string]model.User)}
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.users {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return domain.ErrAlreadyExists
		}
	}
	if existing, ok := m.users[u.ID]; ok {
		// credits are only written on insert, like the SQL upsert
		u.Credits = existing.Credits
	}
	m.users[u.ID] = *u
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepo) AddCredits(ctx context.Context, tx repository.Tx, id string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	if u.Credits+delta < 0 {
		// mirrors the credits >= 0 check constraint
		return 0, domain.ErrOperationFailed
	}
	u.Credits += delta
	m.users[id] = u
	return u.Credits, nil
}

func (m *MockUserRepo) SpendCredits(ctx context.Context, tx repository.Tx, id string, amount int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, false, domain.ErrUserNotFound
	}
	if u.Credits < amount {
		return u.Credits, false, nil
	}
	u.Credits -= amount
	m.users[id] = u
	return u.Credits, true, nil
}

// SetCredits bypasses the ledger; tests use it to simulate drift.
func (m *MockUserRepo) SetCredits(id string, credits int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.Credits = credits
	m.users[id] = u
}

// ---- Mock PurchaseRepository ----

type MockPurchaseRepo struct {
	mu        sync.Mutex
	purchases map[string]model.Purchase
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func NewMockPurchaseRepo() *MockPurchaseRepo {
	return &MockPurchaseRepo{purchases: make(map[string]model.Purchase)}
}

func (m *MockPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases[p.ID] = *p
	return nil
}

func (m *MockPurchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return nil, domain.ErrPurchaseNotFound
	}
	return &p, nil
}

func (m *MockPurchaseRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, ref string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.ProviderRef != nil && *p.ProviderRef == ref {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrPurchaseNotFound
}

func (m *MockPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, p := range m.purchases {
		if p.UserID == userID {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPurchaseRepo) SetProviderRef(ctx context.Context, tx repository.Tx, id, provider, ref, checkoutURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	p.Provider = provider
	p.ProviderRef = &ref
	p.CheckoutURL = checkoutURL
	m.purchases[id] = p
	return nil
}

func (m *MockPurchaseRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PurchaseStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok || p.Status != model.PurchaseStatusPending {
		return false, nil
	}
	p.Status = status
	if status == model.PurchaseStatusPaid {
		now := time.Now()
		p.PaidAt = &now
	}
	m.purchases[id] = p
	return true, nil
}

func (m *MockPurchaseRepo) MarkCredited(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok || p.Credited {
		return domain.ErrInvalidTransition
	}
	p.Status = model.PurchaseStatusPaid
	if p.PaidAt == nil {
		p.PaidAt = &at
	}
	p.Credited = true
	p.CreditedAt = &at
	m.purchases[id] = p
	return nil
}

func (m *MockPurchaseRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, p := range m.purchases {
		if p.Status == model.PurchaseStatusPending && p.ProviderRef != nil && p.CreatedAt.Before(olderThan) {
			cp := p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPurchaseRepo) ListPaidUncredited(ctx context.Context, tx repository.Tx, limit int) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, p := range m.purchases {
		if p.Status == model.PurchaseStatusPaid && !p.Credited {
			cp := p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock PurchaseEventRepository ----

type MockPurchaseEventRepo struct {
	mu     sync.Mutex
	events []model.PurchaseEvent
}

var _ repository.PurchaseEventRepository = (*MockPurchaseEventRepo)(nil)

func NewMockPurchaseEventRepo() *MockPurchaseEventRepo { return &MockPurchaseEventRepo{} }

func (m *MockPurchaseEventRepo) Append(ctx context.Context, tx repository.Tx, e *model.PurchaseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = model.NewULID(time.Now())
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *MockPurchaseEventRepo) ListByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) ([]*model.PurchaseEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PurchaseEvent
	for _, e := range m.events {
		if e.PurchaseID == purchaseID {
			cp := e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock LedgerRepository ----

type MockLedgerRepo struct {
	mu      sync.Mutex
	entries []model.LedgerEntry
}

var _ repository.LedgerRepository = (*MockLedgerRepo)(nil)

func NewMockLedgerRepo() *MockLedgerRepo { return &MockLedgerRepo{} }

func (m *MockLedgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Type == model.LedgerPurchase {
		for _, other := range m.entries {
			if other.Type == model.LedgerPurchase && other.Reference == e.Reference {
				return domain.ErrAlreadyExists
			}
		}
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *MockLedgerRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UserID == userID {
			cp := m.entries[i]
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockLedgerRepo) SumByUser(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.entries {
		if e.UserID == userID {
			sum += e.Credits
		}
	}
	return sum, nil
}

func (m *MockLedgerRepo) SummaryByUser(ctx context.Context, tx repository.Tx, userID string) (*model.LedgerSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &model.LedgerSummary{UserID: userID, ByType: make(map[model.LedgerEntryType]int64)}
	for _, e := range m.entries {
		if e.UserID == userID {
			s.ByType[e.Type] += e.Credits
			s.Total += e.Credits
		}
	}
	return s, nil
}

// EntriesOfType counts entries of one type for a user.
func (m *MockLedgerRepo) EntriesOfType(userID string, typ model.LedgerEntryType) []model.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.LedgerEntry
	for _, e := range m.entries {
		if e.UserID == userID && e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// ---- Mock DocumentRepository ----

type MockDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]model.Document

	SaveFunc func(ctx context.Context, tx repository.Tx, d *model.Document) error
}

var _ repository.DocumentRepository = (*MockDocumentRepo)(nil)

func NewMockDocumentRepo() *MockDocumentRepo {
	return &MockDocumentRepo{docs: make(map[string]model.Document)}
}

func (m *MockDocumentRepo) Save(ctx context.Context, tx repository.Tx, d *model.Document) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.ID] = *d
	return nil
}

func (m *MockDocumentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &d, nil
}

func (m *MockDocumentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Document
	for _, d := range m.docs {
		if d.UserID == userID {
			cp := d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---- Mock WizardStateRepository ----

type MockWizardStateRepo struct {
	mu     sync.Mutex
	states map[string]model.WizardState
}

var _ repository.WizardStateRepository = (*MockWizardStateRepo)(nil)

func NewMockWizardStateRepo() *MockWizardStateRepo {
	return &MockWizardStateRepo{states: make(map[string]model.WizardState)}
}

func (m *MockWizardStateRepo) Save(ctx context.Context, s *model.WizardState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.UserID] = *s
	return nil
}

func (m *MockWizardStateRepo) Load(ctx context.Context, userID string) (*model.WizardState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MockWizardStateRepo) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
	return nil
}

// ---- Mock TransactionManager ----

// MockTxManager serializes transactions, which stands in for the row locks
// the Postgres implementation takes.
type MockTxManager struct {
	mu         sync.Mutex
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockGateway struct {
	checkouts int32
	statuses  int32

	CreateCheckoutFunc func(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error)
	GetStatusFunc      func(ctx context.Context, ref string) (adapter.ProviderStatus, error)
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error) {
	atomic.AddInt32(&m.checkouts, 1)
	if m.CreateCheckoutFunc != nil {
		return m.CreateCheckoutFunc(ctx, req)
	}
	ref := "ref-" + req.PurchaseID
	return adapter.CheckoutSession{Reference: ref, URL: "https://pay.example/" + ref}, nil
}

func (m *MockGateway) GetStatus(ctx context.Context, ref string) (adapter.ProviderStatus, error) {
	atomic.AddInt32(&m.statuses, 1)
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, ref)
	}
	return adapter.ProviderStatus{Reference: ref, RawStatus: "pending"}, nil
}

func (m *MockGateway) StatusCalls() int { return int(atomic.LoadInt32(&m.statuses)) }

// ---- Mock ReceiptSender ----

type MockReceiptSender struct {
	mu   sync.Mutex
	Sent []adapter.Receipt
	Err  error
}

var _ adapter.ReceiptSender = (*MockReceiptSender)(nil)

func (m *MockReceiptSender) SendReceipt(ctx context.Context, r adapter.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, r)
	return nil
}

func (m *MockReceiptSender) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// inlineQueue runs tasks on Submit, so receipts are observable right after Finalize returns.
type inlineQueue struct{}

func (inlineQueue) Submit(task worker.Task) error { return task(context.Background()) }

// ---- Mock Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
	Err  error
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: make(map[string]string)} }

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if _, ok := m.held[key]; ok {
		return "", domain.ErrLocked
	}
	token := uuid.NewString()
	m.held[key] = token
	return token, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ adapter.RateLimiter = (*MockRateLimiter)(nil)

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}

// ---- Mock AIServiceAdapter ----

type MockAI struct {
	calls int32

	CountTokensFunc   func(ctx context.Context, model string, msgs []adapter.Message) (int, error)
	ChatWithUsageFunc func(ctx context.Context, model string, msgs []adapter.Message) (string, adapter.Usage, error)
}

var _ adapter.AIServiceAdapter = (*MockAI)(nil)

func (m *MockAI) Name() string { return "mock-ai" }

func (m *MockAI) CountTokens(ctx context.Context, model string, msgs []adapter.Message) (int, error) {
	if m.CountTokensFunc != nil {
		return m.CountTokensFunc(ctx, model, msgs)
	}
	n := 0
	for _, msg := range msgs {
		n += len(strings.Fields(msg.Content))
	}
	return n, nil
}

func (m *MockAI) ChatWithUsage(ctx context.Context, model string, msgs []adapter.Message) (string, adapter.Usage, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.ChatWithUsageFunc != nil {
		return m.ChatWithUsageFunc(ctx, model, msgs)
	}
	return "# Tailored Resume\n\nGo engineer.", adapter.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

func (m *MockAI) Calls() int { return int(atomic.LoadInt32(&m.calls)) }

// =============================
// Helpers
// =============================

var errBoom = errors.New("boom")

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func seedUser(repo *MockUserRepo, credits int64) *model.User {
	u, _ := model.NewUser("", uuid.NewString()[:8]+"@example.com", "Test User", credits)
	_ = repo.Save(context.Background(), nil, u)
	return u
}
