package payment

import (
	"context"
	"fmt"
	"sync"

	"jobmatchly/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*SandboxGateway)(nil)

// SandboxGateway is an in-memory gateway for local development and tests.
// Sessions stay PENDING until SetStatus is called.
type SandboxGateway struct {
	mu       sync.Mutex
	seq      int64
	baseURL  string
	statuses map[string]string // reference -> raw status
}

func NewSandboxGateway(baseURL string) *SandboxGateway {
	if baseURL == "" {
		baseURL = "https://sandbox.invalid/pay"
	}
	return &SandboxGateway{baseURL: baseURL, statuses: make(map[string]string)}
}

func (g *SandboxGateway) Name() string { return "sandbox" }

func (g *SandboxGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error) {
	if req.AmountMinor <= 0 {
		return adapter.CheckoutSession{}, fmt.Errorf("sandbox: invalid amount %d", req.AmountMinor)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	ref := fmt.Sprintf("sbx-%d", g.seq)
	g.statuses[ref] = "PENDING"
	return adapter.CheckoutSession{Reference: ref, URL: g.baseURL + "/" + ref}, nil
}

func (g *SandboxGateway) GetStatus(ctx context.Context, reference string) (adapter.ProviderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.statuses[reference]
	if !ok {
		return adapter.ProviderStatus{}, fmt.Errorf("sandbox: reference %q not found", reference)
	}
	return adapter.ProviderStatus{Reference: reference, RawStatus: st, Payload: map[string]any{"sandbox": true}}, nil
}

// SetStatus simulates the provider settling a session.
func (g *SandboxGateway) SetStatus(reference, raw string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.statuses[reference]; !ok {
		return fmt.Errorf("sandbox: reference %q not found", reference)
	}
	g.statuses[reference] = raw
	return nil
}
