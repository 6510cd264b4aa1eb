// File: internal/infra/adapters/payment/rest_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobmatchly/internal/config"
	"jobmatchly/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RESTGateway)(nil)

// RESTGateway talks to a hosted-checkout provider over JSON/HTTP:
// POST {base}/checkouts creates a session, GET {base}/checkouts/{id} reads its status.
type RESTGateway struct {
	baseURL    string
	apiKey     string
	successURL string
	cancelURL  string
	client     *http.Client
}

func NewRESTGateway(cfg config.PaymentConfig) (*RESTGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("payment api key empty")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid payment base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RESTGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (g *RESTGateway) Name() string { return "rest" }

type checkoutResponse struct {
	ID     string         `json:"id"`
	URL    string         `json:"url"`
	Status string         `json:"status"`
	Extra  map[string]any `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *RESTGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error) {
	payload := map[string]any{
		"client_reference_id": req.PurchaseID,
		"amount":              req.AmountMinor,
		"currency":            strings.ToLower(req.Currency),
		"quantity":            req.Credits,
		"description":         req.Description,
		"customer_email":      req.UserEmail,
		"success_url":         expandReturnURL(g.successURL, req.PurchaseID),
		"cancel_url":          expandReturnURL(g.cancelURL, req.PurchaseID),
		"metadata":            map[string]any{"purchase_id": req.PurchaseID},
	}
	var out checkoutResponse
	if err := g.do(ctx, http.MethodPost, "/checkouts", payload, &out); err != nil {
		return adapter.CheckoutSession{}, err
	}
	if out.ID == "" || out.URL == "" {
		return adapter.CheckoutSession{}, errors.New("checkout response missing id or url")
	}
	return adapter.CheckoutSession{Reference: out.ID, URL: out.URL}, nil
}

// PurchaseIDPlaceholder in a return URL is replaced with the purchase id.
const PurchaseIDPlaceholder = "{PURCHASE_ID}"

func expandReturnURL(u, purchaseID string) string {
	return strings.ReplaceAll(u, PurchaseIDPlaceholder, url.QueryEscape(purchaseID))
}

func (g *RESTGateway) GetStatus(ctx context.Context, reference string) (adapter.ProviderStatus, error) {
	if reference == "" {
		return adapter.ProviderStatus{}, errors.New("empty reference")
	}
	var out checkoutResponse
	if err := g.do(ctx, http.MethodGet, "/checkouts/"+url.PathEscape(reference), nil, &out); err != nil {
		return adapter.ProviderStatus{}, err
	}
	return adapter.ProviderStatus{
		Reference: reference,
		RawStatus: out.Status,
		Payload:   map[string]any{"id": out.ID, "status": out.Status},
	}, nil
}

func (g *RESTGateway) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
			return fmt.Errorf("payment http %d: %s: %s", resp.StatusCode, e.Error.Code, e.Error.Message)
		}
		return fmt.Errorf("payment http %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
