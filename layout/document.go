// Package layout turns a styled tree into positioned lines and image
// boxes for painting.
package layout

import "sort"

// Layout constants. Sizes are CSS pixels.
const (
	LineSpacing   = 1.2 // line height as a multiple of font size
	HMargin       = 8.0 // page-edge horizontal margin
	BottomPadding = 8.0 // padding below the last box
	PlaceholderW  = 100.0
	PlaceholderH  = 100.0
)

// Line is one positioned run of text sharing a single style. A
// visual row of mixed styles is several Lines with the same Y.
type Line struct {
	Text       string
	X, Y       float64
	Width      float64
	Height     float64
	FontSize   float64
	FontFamily string
	FontWeight string
	FontStyle  string

	// CharPositions holds cumulative advances relative to X: entry i
	// is the offset of the i-th rune's left edge, entry len(runes)
	// the right edge. Always starts at 0.
	CharPositions []float64

	Color     string // raw CSS color value, "" for default
	Link      string // href target when inside an anchor
	Underline bool
}

// ImageBox is a positioned image. Locator keys into the image cache;
// the box never owns pixels.
type ImageBox struct {
	X, Y    float64
	Width   float64
	Height  float64
	Locator string
	Alt     string
}

// BlockKind classifies boxes for the debug overlay.
type BlockKind int

const (
	KindBlock BlockKind = iota
	KindInline
	KindListItem
	KindText
)

// Block records a box outline for the debug overlay. Painting
// ignores Blocks entirely.
type Block struct {
	Tag    string
	Kind   BlockKind
	X, Y   float64
	Width  float64
	Height float64
}

// Document is the result of one layout pass. It is immutable once
// built; any input change rebuilds it wholesale.
type Document struct {
	Lines  []*Line
	Images []*ImageBox
	Blocks []*Block
	Height float64
}

// HitTest maps a document-space point to the line under it and the
// rune index within that line's text. ok is false when the point
// hits no line.
func (d *Document) HitTest(x, y float64) (line *Line, charIndex int, ok bool) {
	for _, ln := range d.Lines {
		if y < ln.Y || y >= ln.Y+ln.Height {
			continue
		}
		if x < ln.X || x > ln.X+ln.Width {
			continue
		}
		rel := x - ln.X
		// CharPositions is sorted; find the rune whose cell contains rel.
		idx := sort.SearchFloat64s(ln.CharPositions, rel)
		if idx > 0 {
			idx--
		}
		if idx >= len(ln.CharPositions)-1 {
			idx = len(ln.CharPositions) - 2
		}
		if idx < 0 {
			idx = 0
		}
		return ln, idx, true
	}
	return nil, 0, false
}

// LinkAt returns the link target under a point, if any.
func (d *Document) LinkAt(x, y float64) (string, bool) {
	if ln, _, ok := d.HitTest(x, y); ok && ln.Link != "" {
		return ln.Link, true
	}
	return "", false
}
