package api

import (
	"time"

	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/usecase"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Credits   int64     `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

func toUser(u *model.User) User {
	return User{ID: u.ID, Email: u.Email, Name: u.Name, Credits: u.Credits, CreatedAt: u.CreatedAt}
}

type Purchase struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	Credits     int64      `json:"credits"`
	AmountMinor int64      `json:"amount_minor"`
	Currency    string     `json:"currency"`
	UnitPrice   string     `json:"unit_price"`
	Subtotal    string     `json:"subtotal"`
	Provider    string     `json:"provider,omitempty"`
	ProviderRef string     `json:"provider_ref,omitempty"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	Credited    bool       `json:"credited"`
	CreditedAt  *time.Time `json:"credited_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toPurchase(p *model.Purchase) Purchase {
	return Purchase{
		ID:          p.ID,
		UserID:      p.UserID,
		Status:      string(p.Status),
		Credits:     p.Credits,
		AmountMinor: p.Amount,
		Currency:    p.Currency,
		UnitPrice:   p.UnitPrice,
		Subtotal:    p.Subtotal,
		Provider:    p.Provider,
		ProviderRef: p.Ref(),
		CheckoutURL: p.CheckoutURL,
		Credited:    p.Credited,
		CreditedAt:  p.CreditedAt,
		PaidAt:      p.PaidAt,
		CreatedAt:   p.CreatedAt,
	}
}

type PurchaseEvent struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	RawStatus string         `json:"raw_status"`
	Status    string         `json:"status"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type LedgerEntry struct {
	ID        string    `json:"id"`
	Credits   int64     `json:"credits"`
	Type      string    `json:"type"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Document struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	ContentMD string    `json:"content_md,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toDocument(d *model.Document, withContent bool) Document {
	out := Document{ID: d.ID, UserID: d.UserID, Kind: string(d.Kind), Title: d.Title, CreatedAt: d.CreatedAt}
	if withContent {
		out.ContentMD = d.ContentMD
	}
	return out
}

// ===== Responses =====

type userResponse struct {
	envelope
	User    User `json:"user"`
	Created bool `json:"created,omitempty"`
}

type creditsResponse struct {
	envelope
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

type ledgerResponse struct {
	envelope
	UserID  string        `json:"user_id"`
	Entries []LedgerEntry `json:"entries"`
}

type checkoutResponse struct {
	envelope
	Purchase    Purchase `json:"purchase"`
	CheckoutURL string   `json:"checkout_url"`
}

type purchaseResponse struct {
	envelope
	Purchase Purchase `json:"purchase"`
	Outcome  string   `json:"outcome,omitempty"`
	Balance  int64    `json:"balance,omitempty"`
}

type purchasesResponse struct {
	envelope
	Purchases []Purchase `json:"purchases"`
}

type eventsResponse struct {
	envelope
	PurchaseID string          `json:"purchase_id"`
	Events     []PurchaseEvent `json:"events"`
}

type documentResponse struct {
	envelope
	Document Document `json:"document"`
}

type documentsResponse struct {
	envelope
	Documents []Document `json:"documents"`
}

type previewResponse struct {
	envelope
	DocumentID string    `json:"document_id"`
	Strategy   string    `json:"strategy"`
	PageCount  int       `json:"page_count"`
	Sheets     int       `json:"sheets"`
	PageBreaks []int     `json:"page_breaks,omitempty"`
	Markers    []float64 `json:"markers,omitempty"`
}

type wizardResponse struct {
	envelope
	State *model.WizardState `json:"state"`
}

type reconcileResponse struct {
	envelope
	UserID     string           `json:"user_id"`
	Balance    int64            `json:"balance"`
	LedgerSum  int64            `json:"ledger_sum"`
	Drift      int64            `json:"drift"`
	Consistent bool             `json:"consistent"`
	ByType     map[string]int64 `json:"by_type,omitempty"`
}

type transitionResponse struct {
	envelope
	PurchaseID string `json:"purchase_id"`
	Status     string `json:"status"`
	Outcome    string `json:"outcome"`
}

func toTransition(res *usecase.TransitionResult) transitionResponse {
	out := transitionResponse{envelope: okEnvelope(), Status: string(res.Status), Outcome: string(res.Outcome)}
	if res.Purchase != nil {
		out.PurchaseID = res.Purchase.ID
	}
	return out
}

// ===== Requests =====

type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type checkoutRequest struct {
	UserID  string  `json:"user_id"`
	Credits float64 `json:"credits"`
}

type spendRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

type grantRequest struct {
	Credits   int64  `json:"credits"`
	Type      string `json:"type"`
	Reference string `json:"reference"`
}

type tailorRequest struct {
	UserID         string `json:"user_id"`
	ResumeMD       string `json:"resume_md"`
	JobDescription string `json:"job_description"`
}

type wizardRequest struct {
	Step           int               `json:"step"`
	ResumeMD       string            `json:"resume_md"`
	JobDescription string            `json:"job_description"`
	Fields         map[string]string `json:"fields"`
}
