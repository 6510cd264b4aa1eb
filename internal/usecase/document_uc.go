package usecase

import (
	"context"
	"sync"

	"jobmatchly/internal/domain/model"
	"jobmatchly/internal/domain/ports/repository"
	"jobmatchly/internal/infra/logging"
	"jobmatchly/internal/pagination"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ DocumentUseCase = (*documentUC)(nil)

// DocumentRenderer measures and prints Markdown documents. render.PDFRenderer implements it.
type DocumentRenderer interface {
	Measurer(md string) pagination.Measurer
	ContentHeightPx() float64
	Render(ctx context.Context, title, md string) ([]byte, int, error)
}

type DocumentPreview struct {
	DocumentID string
	Strategy   pagination.Strategy
	PageCount  int
	// Sheets is the number of laid-out pages; see pagination.Result.
	Sheets int
	// PageBreaks holds the index of the first block on every page after the first.
	PageBreaks []int
	Markers    []float64
}

type DocumentUseCase interface {
	Get(ctx context.Context, id string) (*model.Document, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Document, error)
	// Preview estimates pagination for a content width in px; zero means the renderer's own width.
	Preview(ctx context.Context, id string, widthPx float64, strategy pagination.Strategy) (*DocumentPreview, error)
	RenderPDF(ctx context.Context, id string) ([]byte, *model.Document, error)
}

const maxCachedPreviews = 512

type documentUC struct {
	docs     repository.DocumentRepository
	renderer DocumentRenderer
	log      *zerolog.Logger

	mu       sync.Mutex
	previews map[previewKey]*pagination.Preview
}

type previewKey struct {
	id       string
	strategy pagination.Strategy
}

func NewDocumentUseCase(docs repository.DocumentRepository, renderer DocumentRenderer, logger *zerolog.Logger) *documentUC {
	return &documentUC{
		docs:     docs,
		renderer: renderer,
		log:      logger,
		previews: make(map[previewKey]*pagination.Preview),
	}
}

func (u *documentUC) Get(ctx context.Context, id string) (*model.Document, error) {
	return u.docs.FindByID(ctx, repository.NoTX, id)
}

func (u *documentUC) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Document, error) {
	return u.docs.ListByUser(ctx, repository.NoTX, userID, limit)
}

// preview returns the container for a document, so repeated requests
// repaginate the same state instead of stacking new ones.
func (u *documentUC) preview(id string, strategy pagination.Strategy) *pagination.Preview {
	u.mu.Lock()
	defer u.mu.Unlock()
	k := previewKey{id: id, strategy: strategy}
	if p, ok := u.previews[k]; ok {
		return p
	}
	if len(u.previews) >= maxCachedPreviews {
		u.previews = make(map[previewKey]*pagination.Preview)
	}
	p := pagination.NewPreview(strategy, u.renderer.ContentHeightPx())
	u.previews[k] = p
	return p
}

func (u *documentUC) Preview(ctx context.Context, id string, widthPx float64, strategy pagination.Strategy) (*DocumentPreview, error) {
	defer logging.TraceDuration(u.log, "DocumentUC.Preview")()

	doc, err := u.docs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	res, err := u.preview(doc.ID, strategy).Repaginate(ctx, u.renderer.Measurer(doc.ContentMD), widthPx)
	if err != nil {
		logging.With(logging.WithDocumentID(ctx, id), u.log).Warn().Err(err).Msg("repagination failed")
		return nil, err
	}

	out := &DocumentPreview{
		DocumentID: doc.ID,
		Strategy:   res.Strategy,
		PageCount:  res.PageCount,
		Sheets:     res.Sheets,
		Markers:    res.Markers,
	}
	if len(res.Pages) > 1 {
		idx := 0
		for _, p := range res.Pages {
			if p.Index > 0 {
				out.PageBreaks = append(out.PageBreaks, idx)
			}
			idx += len(p.Elements)
		}
	}
	return out, nil
}

func (u *documentUC) RenderPDF(ctx context.Context, id string) ([]byte, *model.Document, error) {
	defer logging.TraceDuration(u.log, "DocumentUC.RenderPDF")()

	doc, err := u.docs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, nil, err
	}
	out, pages, err := u.renderer.Render(ctx, doc.Title, doc.ContentMD)
	if err != nil {
		u.log.Error().Err(err).Str("document_id", id).Msg("Failed to render document")
		return nil, nil, err
	}
	logging.With(logging.WithDocumentID(ctx, id), u.log).Debug().Int("pages", pages).Int("bytes", len(out)).Msg("document rendered")
	return out, doc, nil
}
