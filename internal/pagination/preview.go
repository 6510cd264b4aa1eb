package pagination

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Strategy selects how a Preview lays out pages.
type Strategy int

const (
	// StrategyBinPack wraps whole elements into page containers.
	StrategyBinPack Strategy = iota
	// StrategyMarkers leaves the flow untouched and overlays boundary markers.
	StrategyMarkers
)

func (s Strategy) String() string {
	switch s {
	case StrategyBinPack:
		return "binpack"
	case StrategyMarkers:
		return "markers"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy reads a strategy name; empty means StrategyBinPack.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "binpack":
		return StrategyBinPack, nil
	case "markers":
		return StrategyMarkers, nil
	default:
		return StrategyBinPack, fmt.Errorf("pagination: unknown strategy %q", name)
	}
}

// Measurer lays content out at the given width and reports the height of each
// top-level element.
type Measurer interface {
	Measure(ctx context.Context, width float64) ([]Element, error)
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func(ctx context.Context, width float64) ([]Element, error)

func (f MeasurerFunc) Measure(ctx context.Context, width float64) ([]Element, error) {
	return f(ctx, width)
}

// Result is the artifact set a Preview owns. Exactly one of Pages or Markers
// is populated, depending on the strategy.
//
// PageCount is always max(1, ceil(total/pageHeight)). Sheets is the number of
// page containers actually laid out; bin packing never splits an element, so
// it can exceed PageCount.
type Result struct {
	Strategy  Strategy
	Width     float64
	PageCount int
	Sheets    int
	Pages     []Page
	Markers   []float64
}

// Preview holds the current pagination artifacts for one content container.
// Repaginate replaces them wholesale, so repeated runs never accumulate stale
// pages or markers.
type Preview struct {
	mu         sync.Mutex
	strategy   Strategy
	pageHeight float64
	current    Result
	lastErr    error
	runs       int
}

func NewPreview(strategy Strategy, pageHeight float64) *Preview {
	p := &Preview{strategy: strategy, pageHeight: normPage(pageHeight)}
	p.current = Result{Strategy: strategy, PageCount: 1, Sheets: 1}
	return p
}

// Repaginate measures at width and rebuilds the artifacts. On a measurement
// error the previous result stays in place and the error is returned.
func (p *Preview) Repaginate(ctx context.Context, m Measurer, width float64) (Result, error) {
	if m == nil {
		return p.Snapshot(), fmt.Errorf("pagination: nil measurer")
	}
	elements, err := m.Measure(ctx, width)
	if err == nil {
		err = ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs++
	if err != nil {
		p.lastErr = fmt.Errorf("pagination: measure: %w", err)
		return cloneResult(p.current), p.lastErr
	}

	total := TotalHeight(elements)
	next := Result{Strategy: p.strategy, Width: width, PageCount: PageCount(total, p.pageHeight)}
	switch p.strategy {
	case StrategyMarkers:
		next.Markers = Markers(total, p.pageHeight)
		next.Sheets = next.PageCount
	default:
		next.Pages = BinPack(elements, p.pageHeight)
		next.Sheets = max(1, len(next.Pages))
	}
	p.current = next
	p.lastErr = nil
	return cloneResult(next), nil
}

// Snapshot returns a copy of the current artifacts.
func (p *Preview) Snapshot() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneResult(p.current)
}

// Err is the error of the last run, nil after a successful one.
func (p *Preview) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func cloneResult(r Result) Result {
	out := r
	if r.Pages != nil {
		out.Pages = make([]Page, len(r.Pages))
		for i, pg := range r.Pages {
			pg.Elements = append([]Element(nil), pg.Elements...)
			out.Pages[i] = pg
		}
	}
	if r.Markers != nil {
		out.Markers = append([]float64(nil), r.Markers...)
	}
	return out
}
