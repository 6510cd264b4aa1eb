package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobmatchly/internal/domain"
	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/adapter"
	"jobmatchly/internal/domain/ports/repository"
	"jobmatchly/internal/infra/logging"
	"jobmatchly/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ TailorUseCase = (*tailorUC)(nil)

// TailorUseCase turns a resume and a job description into a new document.
// Each successful generation costs one credit; failed generations are refunded.
type TailorUseCase interface {
	TailorResume(ctx context.Context, userID, resumeMD, jobDescription string) (*model.Document, error)
	GenerateCoverLetter(ctx context.Context, userID, resumeMD, jobDescription string) (*model.Document, error)
}

type TailorOptions struct {
	Model           string
	MaxPromptTokens int
	// PerMinute caps generations per user; zero disables the limit.
	PerMinute int
}

const generationCost = 1

type tailorUC struct {
	credits CreditUseCase
	docs    repository.DocumentRepository
	ai      adapter.AIServiceAdapter
	limiter adapter.RateLimiter
	opts    TailorOptions
	log     *zerolog.Logger
}

func NewTailorUseCase(credits CreditUseCase, docs repository.DocumentRepository, ai adapter.AIServiceAdapter, limiter adapter.RateLimiter, opts TailorOptions, logger *zerolog.Logger) *tailorUC {
	return &tailorUC{credits: credits, docs: docs, ai: ai, limiter: limiter, opts: opts, log: logger}
}

const tailorSystemPrompt = `You rewrite resumes for a specific job posting.
Keep every fact from the original resume and never invent employers, dates or degrees.
Reorder and rephrase so the most relevant experience comes first.
Answer with the full resume in Markdown, starting with a level-one heading holding the candidate's name.`

const coverLetterSystemPrompt = `You write concise cover letters.
Use only facts found in the resume. Address the job posting directly in three to five short paragraphs.
Answer in Markdown, starting with a level-one heading for the letter title.`

func (u *tailorUC) TailorResume(ctx context.Context, userID, resumeMD, jobDescription string) (*model.Document, error) {
	return u.generate(ctx, model.DocumentResume, userID, resumeMD, jobDescription)
}

func (u *tailorUC) GenerateCoverLetter(ctx context.Context, userID, resumeMD, jobDescription string) (*model.Document, error) {
	return u.generate(ctx, model.DocumentCoverLetter, userID, resumeMD, jobDescription)
}

func (u *tailorUC) generate(ctx context.Context, kind model.DocumentKind, userID, resumeMD, jobDescription string) (*model.Document, error) {
	defer logging.TraceDuration(u.log, "TailorUC.generate")()
	ctx = logging.WithUserID(ctx, userID)
	log := logging.With(ctx, u.log)

	if userID == "" || strings.TrimSpace(resumeMD) == "" || strings.TrimSpace(jobDescription) == "" {
		return nil, domain.ErrInvalidArgument
	}

	if u.limiter != nil && u.opts.PerMinute > 0 {
		ok, err := u.limiter.Allow(ctx, "tailor:"+userID, u.opts.PerMinute, time.Minute)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			metrics.IncGeneration(string(kind), "rate_limited")
			return nil, domain.ErrRateLimited
		}
	}

	msgs := buildMessages(kind, resumeMD, jobDescription)
	if u.opts.MaxPromptTokens > 0 {
		n, err := u.ai.CountTokens(ctx, u.opts.Model, msgs)
		if err != nil {
			log.Warn().Err(err).Msg("token count unavailable, skipping pre-check")
		} else if n > u.opts.MaxPromptTokens {
			metrics.PrecheckBlocked(u.opts.Model)
			metrics.IncGeneration(string(kind), "too_large")
			return nil, fmt.Errorf("%w: %d tokens, limit %d", domain.ErrPromptTooLarge, n, u.opts.MaxPromptTokens)
		}
	}

	docID := uuid.NewString()
	ctx = logging.WithDocumentID(ctx, docID)
	if _, err := u.credits.SpendCredits(ctx, userID, generationCost, docID); err != nil {
		metrics.IncGeneration(string(kind), "rejected")
		return nil, err
	}

	start := time.Now()
	out, usage, err := u.ai.ChatWithUsage(ctx, u.opts.Model, msgs)
	metrics.ObserveChatUsage(u.ai.Name(), u.opts.Model, usage.PromptTokens, usage.CompletionTokens,
		time.Since(start).Milliseconds(), err == nil)
	if err == nil && strings.TrimSpace(out) == "" {
		err = fmt.Errorf("empty completion")
	}
	if err != nil {
		u.refund(ctx, userID, docID)
		metrics.IncGeneration(string(kind), "refunded")
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	doc, err := model.NewDocument(userID, kind, deriveTitle(out), out)
	if err != nil {
		u.refund(ctx, userID, docID)
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	doc.ID = docID
	if err := u.docs.Save(ctx, repository.NoTX, doc); err != nil {
		u.log.Error().Err(err).Str("document_id", docID).Msg("Failed to save document")
		u.refund(ctx, userID, docID)
		return nil, err
	}

	metrics.IncGeneration(string(kind), "ok")
	log.Info().Str("kind", string(kind)).Int("tokens_in", usage.PromptTokens).
		Int("tokens_out", usage.CompletionTokens).Msg("document generated")
	return doc, nil
}

// refund must land even when the caller's request was canceled mid-generation.
func (u *tailorUC) refund(ctx context.Context, userID, docID string) {
	if _, err := u.credits.RefundCredits(context.WithoutCancel(ctx), userID, generationCost, docID); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("Failed to refund credit")
	}
}

func buildMessages(kind model.DocumentKind, resumeMD, jobDescription string) []adapter.Message {
	system := tailorSystemPrompt
	if kind == model.DocumentCoverLetter {
		system = coverLetterSystemPrompt
	}
	user := "## Resume\n\n" + strings.TrimSpace(resumeMD) + "\n\n## Job description\n\n" + strings.TrimSpace(jobDescription)
	return []adapter.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

const maxTitleRunes = 120

// deriveTitle takes the first Markdown heading of the output, if any.
// Long headings are cut at a character boundary.
func deriveTitle(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			title := strings.TrimSpace(strings.TrimLeft(line, "#"))
			if r := []rune(title); len(r) > maxTitleRunes {
				title = strings.TrimSpace(string(r[:maxTitleRunes]))
			}
			return title
		}
	}
	return ""
}
