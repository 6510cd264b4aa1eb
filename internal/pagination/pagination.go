// Package pagination estimates how a continuous document paginates onto
// fixed-height sheets. It works on measured element heights only; there is no
// typesetting here.
package pagination

import "math"

// PageHeightPx is an A4 sheet at 96 DPI.
const PageHeightPx = 1123.0

// Element is one top-level block of content with its measured height.
type Element struct {
	ID     string
	Height float64
}

// Page is a run of whole elements.
type Page struct {
	Index    int
	Elements []Element
	Height   float64
}

// Overflows reports whether the page holds a single element taller than pageHeight.
func (p Page) Overflows(pageHeight float64) bool {
	return p.Height > pageHeight
}

func normHeight(h float64) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) || h < 0 {
		return 0
	}
	return h
}

func normPage(pageHeight float64) float64 {
	if math.IsNaN(pageHeight) || math.IsInf(pageHeight, 0) || pageHeight <= 0 {
		return PageHeightPx
	}
	return pageHeight
}

// PageCount is ceil(total/page) with a minimum of 1.
func PageCount(totalHeight, pageHeight float64) int {
	total := normHeight(totalHeight)
	page := normPage(pageHeight)
	n := int(math.Ceil(total / page))
	if n < 1 {
		return 1
	}
	return n
}

// BinPack fills pages in document order. An element that does not fit closes
// the current page unless that page is empty; elements are never split, so an
// oversize element gets a page of its own and overflows it.
func BinPack(elements []Element, pageHeight float64) []Page {
	page := normPage(pageHeight)
	pages := []Page{{Index: 0}}
	for _, el := range elements {
		el.Height = normHeight(el.Height)
		cur := &pages[len(pages)-1]
		if len(cur.Elements) > 0 && cur.Height+el.Height > page {
			pages = append(pages, Page{Index: len(pages)})
			cur = &pages[len(pages)-1]
		}
		cur.Elements = append(cur.Elements, el)
		cur.Height += el.Height
	}
	return pages
}

// Markers returns the offsets of every page boundary strictly inside the content.
func Markers(totalHeight, pageHeight float64) []float64 {
	total := normHeight(totalHeight)
	page := normPage(pageHeight)
	var out []float64
	for y := page; y < total; y += page {
		out = append(out, y)
	}
	return out
}

// TotalHeight sums element heights.
func TotalHeight(elements []Element) float64 {
	var sum float64
	for _, el := range elements {
		sum += normHeight(el.Height)
	}
	return sum
}
