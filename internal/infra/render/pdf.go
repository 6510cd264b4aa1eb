package render

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"jobmatchly/internal/pagination"
)

const (
	pageWidthMM  = 210.0
	pageHeightMM = 297.0
	mmPerPx      = 25.4 / 96.0
)

type blockStyle struct {
	family string
	style  string
	size   float64
	line   float64 // line height, mm
	after  float64 // gap after the block, mm
	indent float64 // mm per nesting level
}

func styleFor(b Block) blockStyle {
	switch b.Kind {
	case BlockHeading:
		switch b.Level {
		case 1:
			return blockStyle{family: "Helvetica", style: "B", size: 18, line: 9, after: 3}
		case 2:
			return blockStyle{family: "Helvetica", style: "B", size: 14, line: 7, after: 2.5}
		default:
			return blockStyle{family: "Helvetica", style: "B", size: 12, line: 6, after: 2}
		}
	case BlockListItem:
		return blockStyle{family: "Helvetica", size: 11, line: 5.5, after: 1.5, indent: 5}
	case BlockCode:
		return blockStyle{family: "Courier", size: 10, line: 5, after: 3}
	default:
		return blockStyle{family: "Helvetica", size: 11, line: 5.5, after: 3}
	}
}

// PDFRenderer lays markdown out on A4 pages. Page breaks come from
// pagination.BinPack over measured block heights, so the preview and the
// printed PDF agree on where pages end.
type PDFRenderer struct {
	marginMM float64
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{marginMM: 20}
}

func (r *PDFRenderer) contentWidthMM() float64  { return pageWidthMM - 2*r.marginMM }
func (r *PDFRenderer) contentHeightMM() float64 { return pageHeightMM - 2*r.marginMM }

// ContentHeightPx is the printable height of one page at 96 DPI.
func (r *PDFRenderer) ContentHeightPx() float64 { return r.contentHeightMM() / mmPerPx }

// ContentWidthPx is the printable width of one page at 96 DPI.
func (r *PDFRenderer) ContentWidthPx() float64 { return r.contentWidthMM() / mmPerPx }

func (r *PDFRenderer) newDoc() *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(r.marginMM, r.marginMM, r.marginMM)
	pdf.SetAutoPageBreak(true, r.marginMM)
	return pdf
}

// measure returns one element per block with its height in px.
func (r *PDFRenderer) measure(pdf *fpdf.Fpdf, tr func(string) string, blocks []Block, widthMM float64) []pagination.Element {
	out := make([]pagination.Element, len(blocks))
	for i, b := range blocks {
		st := styleFor(b)
		pdf.SetFont(st.family, st.style, st.size)
		w := widthMM - st.indent*float64(max(b.Level, 1)-1) - st.indent
		if w < 10 {
			w = 10
		}
		lines := len(pdf.SplitText(tr(b.Text), w))
		if lines == 0 {
			lines = 1
		}
		hMM := float64(lines)*st.line + st.after
		out[i] = pagination.Element{ID: strconv.Itoa(i), Height: hMM / mmPerPx}
	}
	return out
}

// Measurer returns a pagination.Measurer for md. Width is in px; zero means
// the printable page width.
func (r *PDFRenderer) Measurer(md string) pagination.Measurer {
	return pagination.MeasurerFunc(func(ctx context.Context, widthPx float64) ([]pagination.Element, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		widthMM := r.contentWidthMM()
		if widthPx > 0 {
			widthMM = widthPx * mmPerPx
		}
		pdf := r.newDoc()
		tr := pdf.UnicodeTranslatorFromDescriptor("")
		els := r.measure(pdf, tr, ParseBlocks(md), widthMM)
		if pdf.Err() {
			return nil, fmt.Errorf("measure: %w", pdf.Error())
		}
		return els, nil
	})
}

// Render returns the PDF bytes and the number of pages written.
func (r *PDFRenderer) Render(ctx context.Context, title, md string) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	pdf := r.newDoc()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetCreator("JobMatchly", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-r.marginMM + 5)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(127, 140, 141)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	blocks := ParseBlocks(md)
	pages := pagination.BinPack(r.measure(pdf, tr, blocks, r.contentWidthMM()), r.ContentHeightPx())

	idx := 0
	for _, pg := range pages {
		pdf.AddPage()
		for range pg.Elements {
			r.writeBlock(pdf, tr, blocks[idx])
			idx++
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, 0, fmt.Errorf("PDF output error: %w", err)
	}
	return buf.Bytes(), pdf.PageCount(), nil
}

func (r *PDFRenderer) writeBlock(pdf *fpdf.Fpdf, tr func(string) string, b Block) {
	st := styleFor(b)
	pdf.SetFont(st.family, st.style, st.size)
	pdf.SetTextColor(44, 62, 80)

	indent := 0.0
	if b.Kind == BlockListItem {
		indent = st.indent * float64(max(b.Level, 1))
	}
	pdf.SetX(r.marginMM + indent)
	pdf.MultiCell(r.contentWidthMM()-indent, st.line, tr(b.Text), "", "L", false)
	pdf.Ln(st.after)
}
