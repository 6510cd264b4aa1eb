package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/infra/adapters/payment"
	"jobmatchly/internal/infra/logging"
	"jobmatchly/internal/infra/metrics"
	"jobmatchly/internal/pagination"

	"github.com/go-chi/chi/v5"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func queryLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// ===== Users & credits =====

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, created, err := s.svc.Users.RegisterOrFetch(r.Context(), req.Email, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, userResponse{envelope: okEnvelope(), User: toUser(u), Created: created})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{envelope: okEnvelope(), User: toUser(u)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bal, err := s.svc.Credits.Balance(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{envelope: okEnvelope(), UserID: id, Balance: bal})
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req spendRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := logging.WithUserID(r.Context(), id)
	bal, err := s.svc.Credits.SpendCredits(ctx, id, req.Amount, req.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			reason := domain.Reason(err)
			writeJSON(w, http.StatusPaymentRequired, struct {
				envelope
				UserID  string `json:"user_id"`
				Balance int64  `json:"balance"`
			}{envelope{OK: false, Reason: reason, Message: s.message(reason)}, id, bal})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{envelope: okEnvelope(), UserID: id, Balance: bal})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := s.svc.Credits.Ledger(r.Context(), id, queryLimit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := ledgerResponse{envelope: okEnvelope(), UserID: id, Entries: make([]LedgerEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, LedgerEntry{
			ID:        e.ID,
			Credits:   e.Credits,
			Type:      string(e.Type),
			Reference: e.Reference,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUserPurchases(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Purchases.ListByUser(r.Context(), chi.URLParam(r, "id"), queryLimit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := purchasesResponse{envelope: okEnvelope(), Purchases: make([]Purchase, 0, len(list))}
	for _, p := range list {
		out.Purchases = append(out.Purchases, toPurchase(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUserDocuments(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Documents.ListByUser(r.Context(), chi.URLParam(r, "id"), queryLimit(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := documentsResponse{envelope: okEnvelope(), Documents: make([]Document, 0, len(list))}
	for _, d := range list {
		out.Documents = append(out.Documents, toDocument(d, false))
	}
	writeJSON(w, http.StatusOK, out)
}

// ===== Purchases =====

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Purchases.Checkout(logging.WithUserID(r.Context(), req.UserID), req.UserID, req.Credits)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{
		envelope:    okEnvelope(),
		Purchase:    toPurchase(res.Purchase),
		CheckoutURL: res.CheckoutURL,
	})
}

// handleWebhook verifies the signature over the raw body before parsing it.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, errors.Join(domain.ErrInvalidArgument, err))
		return
	}
	if s.opts.WebhookSecret != "" && !payment.VerifySignature(s.opts.WebhookSecret, body, r.Header.Get(payment.SignatureHeader)) {
		metrics.IncWebhook("bad_signature")
		s.writeError(w, r, domain.ErrInvalidSignature)
		return
	}
	ev, err := payment.ParseWebhook(body)
	if err != nil {
		metrics.IncWebhook("malformed")
		s.writeError(w, r, errors.Join(domain.ErrInvalidArgument, err))
		return
	}
	res, err := s.svc.Purchases.HandleWebhook(r.Context(), ev.Reference, ev.Status, ev.Payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransition(res))
}

func (s *Server) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Purchases.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchaseResponse{envelope: okEnvelope(), Purchase: toPurchase(p)})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.svc.Purchases.Poll(logging.WithPurchaseID(r.Context(), id), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransition(res))
}

func (s *Server) handleSandboxSettle(w http.ResponseWriter, r *http.Request) {
	ref, status := chi.URLParam(r, "ref"), chi.URLParam(r, "status")
	if err := s.opts.Sandbox.SetStatus(ref, strings.ToUpper(status)); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrNotFound, err))
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope())
}

// ===== Tailoring & documents =====

func (s *Server) handleTailor(kind model.DocumentKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tailorRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := logging.WithUserID(r.Context(), req.UserID)
		var (
			doc *model.Document
			err error
		)
		switch kind {
		case model.DocumentCoverLetter:
			doc, err = s.svc.Tailor.GenerateCoverLetter(ctx, req.UserID, req.ResumeMD, req.JobDescription)
		default:
			doc, err = s.svc.Tailor.TailorResume(ctx, req.UserID, req.ResumeMD, req.JobDescription)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, documentResponse{envelope: okEnvelope(), Document: toDocument(doc, true)})
	}
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{envelope: okEnvelope(), Document: toDocument(doc, true)})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	strategy, err := pagination.ParseStrategy(q.Get("strategy"))
	if err != nil {
		s.writeError(w, r, errors.Join(domain.ErrInvalidArgument, err))
		return
	}
	var width float64
	if v := q.Get("width"); v != "" {
		width, err = strconv.ParseFloat(v, 64)
		if err != nil || width < 0 {
			s.writeError(w, r, fmt.Errorf("%w: width must be a non-negative number", domain.ErrInvalidArgument))
			return
		}
	}
	id := chi.URLParam(r, "id")
	pv, err := s.svc.Documents.Preview(logging.WithDocumentID(r.Context(), id), id, width, strategy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{
		envelope:   okEnvelope(),
		DocumentID: pv.DocumentID,
		Strategy:   pv.Strategy.String(),
		PageCount:  pv.PageCount,
		Sheets:     pv.Sheets,
		PageBreaks: pv.PageBreaks,
		Markers:    pv.Markers,
	})
}

func (s *Server) handlePDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	out, doc, err := s.svc.Documents.RenderPDF(logging.WithDocumentID(r.Context(), id), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", pdfFilename(doc)))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func pdfFilename(d *model.Document) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, d.Title)
	if name == "" {
		name = string(d.Kind)
	}
	return name + ".pdf"
}

// ===== Wizard =====

func (s *Server) handleWizardLoad(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Wizard.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wizardResponse{envelope: okEnvelope(), State: st})
}

func (s *Server) handleWizardSave(w http.ResponseWriter, r *http.Request) {
	var req wizardRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st := &model.WizardState{
		UserID:         chi.URLParam(r, "id"),
		Step:           req.Step,
		ResumeMD:       req.ResumeMD,
		JobDescription: req.JobDescription,
		Fields:         req.Fields,
	}
	if err := s.svc.Wizard.Save(r.Context(), st); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wizardResponse{envelope: okEnvelope(), State: st})
}

func (s *Server) handleWizardReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Wizard.Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope())
}

// ===== Admin =====

func (s *Server) handleAdminGrant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	typ := model.LedgerEntryType(req.Type)
	if req.Type == "" {
		typ = model.LedgerGrant
	}
	bal, err := s.svc.Credits.AddCredits(logging.WithUserID(r.Context(), id), id, req.Credits, typ, req.Reference)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{envelope: okEnvelope(), UserID: id, Balance: bal})
}

func (s *Server) handleAdminReconcile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.svc.Credits.Reconcile(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := reconcileResponse{
		envelope:   okEnvelope(),
		UserID:     rec.UserID,
		Balance:    rec.Balance,
		LedgerSum:  rec.LedgerSum,
		Drift:      rec.Drift,
		Consistent: rec.Consistent(),
	}
	if sum, err := s.svc.Credits.Summary(r.Context(), id); err == nil {
		out.ByType = make(map[string]int64, len(sum.ByType))
		for k, v := range sum.ByType {
			out.ByType[string(k)] = v
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminFinalize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.svc.Purchases.Finalize(logging.WithPurchaseID(r.Context(), id), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchaseResponse{
		envelope: okEnvelope(),
		Purchase: toPurchase(res.Purchase),
		Outcome:  string(res.Outcome),
		Balance:  res.Balance,
	})
}

func (s *Server) handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	list, err := s.svc.Purchases.Events(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := eventsResponse{envelope: okEnvelope(), PurchaseID: id, Events: make([]PurchaseEvent, 0, len(list))}
	for _, e := range list {
		out.Events = append(out.Events, PurchaseEvent{
			ID:        e.ID,
			Source:    string(e.Source),
			RawStatus: e.RawStatus,
			Status:    string(e.Status),
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
