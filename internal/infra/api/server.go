package api

import (
	"html/template"
	"net/http"
	"time"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/infra/i18n"
	"jobmatchly/internal/infra/logging"
	"jobmatchly/internal/infra/metrics"
	"jobmatchly/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Services groups the use cases the HTTP layer drives.
type Services struct {
	Users     usecase.UserUseCase
	Credits   usecase.CreditUseCase
	Purchases usecase.PurchaseUseCase
	Tailor    usecase.TailorUseCase
	Documents usecase.DocumentUseCase
	Wizard    usecase.WizardUseCase
}

// SandboxSettler lets local development settle sandbox checkouts over HTTP.
type SandboxSettler interface {
	SetStatus(reference, raw string) error
}

type Options struct {
	// WebhookSecret verifies X-Signature. Empty disables verification, which
	// config only allows for the sandbox gateway.
	WebhookSecret  string
	RequestTimeout time.Duration
	Translator     *i18n.Translator
	Sandbox        SandboxSettler
}

// Server exposes the purchase, credit and document flows over HTTP.
type Server struct {
	svc  Services
	auth *AuthManager
	opts Options
	tr   *i18n.Translator
	log  *zerolog.Logger
}

func NewServer(svc Services, auth *AuthManager, opts Options, logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if auth == nil {
		auth = NewAuthManager("", false, "", 0)
	}
	return &Server{svc: svc, auth: auth, opts: opts, tr: opts.Translator, log: logger}
}

func (s *Server) logger(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{OK: false, Reason: "not_found", Message: s.message("not_found")})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{OK: false, Reason: "method_not_allowed", Message: s.message("method_not_allowed")})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, okEnvelope())
	})
	r.Handle("/metrics", metrics.Handler())
	r.With(Timeout(s.opts.RequestTimeout)).Get("/checkout/return", s.handleCheckoutReturn)
	if s.opts.Sandbox != nil {
		r.Post("/sandbox/checkouts/{ref}/{status}", s.handleSandboxSettle)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Post("/users", s.handleRegister)
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Get("/credits", s.handleBalance)
			r.Post("/credits/spend", s.handleSpend)
			r.Get("/ledger", s.handleLedger)
			r.Get("/purchases", s.handleUserPurchases)
			r.Get("/documents", s.handleUserDocuments)
			r.Get("/wizard", s.handleWizardLoad)
			r.Put("/wizard", s.handleWizardSave)
			r.Delete("/wizard", s.handleWizardReset)
		})

		r.Post("/checkout", s.handleCheckout)
		r.Post("/payments/webhook", s.handleWebhook)
		r.Get("/purchases/{id}", s.handleGetPurchase)
		r.Get("/purchases/{id}/status", s.handlePoll)

		r.Post("/tailor/resume", s.handleTailor(model.DocumentResume))
		r.Post("/tailor/cover-letter", s.handleTailor(model.DocumentCoverLetter))

		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/documents/{id}/preview", s.handlePreview)
		r.Get("/documents/{id}/pdf", s.handlePDF)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.auth.RequireAdmin)
			r.Post("/users/{id}/credits", s.handleAdminGrant)
			r.Get("/users/{id}/reconcile", s.handleAdminReconcile)
			r.Post("/purchases/{id}/finalize", s.handleAdminFinalize)
			r.Get("/purchases/{id}/events", s.handleAdminEvents)
		})
	})
	return r
}

// ===== Checkout return page =====

type returnPage struct {
	OK      bool
	Title   string
	Message string
	Ref     string
}

// handleCheckoutReturn is where the hosted checkout sends the browser back.
// It polls once so the page reflects the settled state when possible.
func (s *Server) handleCheckoutReturn(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("purchase_id")
	if id == "" {
		s.renderReturn(w, http.StatusBadRequest, returnPage{Title: s.text("checkout_return_title_failed"), Message: s.message("invalid_argument")})
		return
	}

	p, err := s.svc.Purchases.Get(r.Context(), id)
	if err != nil {
		s.renderReturn(w, statusFor(err), returnPage{Title: s.text("checkout_return_title_failed"), Message: s.message(domain.Reason(err))})
		return
	}
	if p.Status == model.PurchaseStatusPending || (p.Status == model.PurchaseStatusPaid && !p.Credited) {
		if res, err := s.svc.Purchases.Poll(r.Context(), id); err == nil && res.Purchase != nil {
			p = res.Purchase
		} else if err != nil {
			l := s.logger(r)
			l.Warn().Err(err).Str("purchase_id", id).Msg("poll on return failed")
		}
	}

	switch {
	case p.Status == model.PurchaseStatusPaid:
		s.renderReturn(w, http.StatusOK, returnPage{OK: true, Title: s.text("checkout_return_title_ok"), Message: s.text("checkout_return_ok", p.Credits), Ref: p.ID})
	case p.Status == model.PurchaseStatusPending:
		s.renderReturn(w, http.StatusOK, returnPage{Title: s.text("checkout_return_title_pending"), Message: s.text("checkout_return_pending"), Ref: p.ID})
	default:
		s.renderReturn(w, http.StatusOK, returnPage{Title: s.text("checkout_return_title_failed"), Message: s.text("checkout_return_failed"), Ref: p.ID})
	}
}

func (s *Server) text(key string, args ...any) string {
	if s.tr == nil {
		return key
	}
	return s.tr.T(key, args...)
}

var page = template.Must(template.New("return").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card">
<h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{.Title}}</h2>
<p>{{.Message}}</p>
{{if .Ref}}<p class="small">Purchase: {{.Ref}}</p>{{end}}
</div>
</body>
</html>`))

func (s *Server) renderReturn(w http.ResponseWriter, status int, data returnPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = page.Execute(w, data)
}
