package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"

	"jobmatchly/internal/config"
	"jobmatchly/internal/domain/ports/adapter"
	"jobmatchly/internal/infra/i18n"
)

var _ adapter.ReceiptSender = (*SMTPReceiptSender)(nil)

// Dialer is the part of gomail.Dialer used to deliver messages.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPReceiptSender mails purchase receipts through an SMTP relay.
type SMTPReceiptSender struct {
	dialer Dialer
	from   string
	tr     *i18n.Translator
}

func NewSMTPReceiptSender(cfg config.EmailConfig, tr *i18n.Translator) (*SMTPReceiptSender, error) {
	if cfg.SMTPHost == "" || cfg.FromEmail == "" {
		return nil, errors.New("smtp host and from address are required")
	}
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	return NewReceiptSenderWithDialer(d, cfg.FromEmail, tr), nil
}

func NewReceiptSenderWithDialer(d Dialer, from string, tr *i18n.Translator) *SMTPReceiptSender {
	return &SMTPReceiptSender{dialer: d, from: from, tr: tr}
}

func (s *SMTPReceiptSender) SendReceipt(ctx context.Context, r adapter.Receipt) error {
	if r.To == "" {
		return errors.New("receipt has no recipient")
	}
	// gomail has no context support; at least do not dial for a canceled task.
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, text := s.compose(r)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetAddressHeader("To", r.To, r.Name)
	m.SetHeader("Subject", subject)
	m.SetHeader("X-Purchase-ID", r.PurchaseID)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", toHTML(text))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	return nil
}

func (s *SMTPReceiptSender) compose(r adapter.Receipt) (subject, body string) {
	name := r.Name
	if name == "" {
		name = r.To
	}
	amount := decimal.New(r.AmountMinor, -2).StringFixed(2)

	lines := []string{
		s.tr.T("receipt_greeting", name),
		"",
		s.tr.T("receipt_body", r.Credits, amount, r.Currency),
		s.tr.T("receipt_balance", r.Balance),
	}
	if r.Reference != "" {
		lines = append(lines, s.tr.T("receipt_reference", r.Reference))
	}
	lines = append(lines, "", s.tr.T("receipt_footer"))
	return s.tr.T("receipt_subject", r.Credits), strings.Join(lines, "\n")
}

func toHTML(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

var _ adapter.ReceiptSender = (*LogReceiptSender)(nil)

// LogReceiptSender logs receipts instead of mailing them; used when SMTP is not configured.
type LogReceiptSender struct {
	log *zerolog.Logger
}

func NewLogReceiptSender(logger *zerolog.Logger) *LogReceiptSender {
	return &LogReceiptSender{log: logger}
}

func (l *LogReceiptSender) SendReceipt(ctx context.Context, r adapter.Receipt) error {
	l.log.Info().Str("purchase_id", r.PurchaseID).Int64("credits", r.Credits).
		Int64("balance", r.Balance).Msg("receipt (smtp disabled)")
	return nil
}
