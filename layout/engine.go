package layout

import (
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/image/font"

	"perch/css"
	"perch/html"
	"perch/images"
	"perch/network"
	"perch/text"
)

// Engine lays out styled trees. It holds the font metrics service
// and the image cache used for intrinsic image sizes; both are shared
// across layout passes.
type Engine struct {
	fonts  *text.Service
	loader *images.Loader
	logger *slog.Logger
}

// NewEngine creates a layout engine. loader may be nil, in which case
// every image gets placeholder dimensions.
func NewEngine(fonts *text.Service, loader *images.Loader, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{fonts: fonts, loader: loader, logger: logger}
}

// Layout builds a Document for the styled tree at the given viewport
// width. base is the page locator used to resolve image references.
func (e *Engine) Layout(root *css.StyledNode, width float64, base string) *Document {
	st := &state{
		engine: e,
		doc:    &Document{},
		width:  width,
		base:   base,
	}

	body := root.Find("body")
	if body == nil {
		body = root
	}
	st.layoutBlock(body, 0, width)

	st.doc.Height = st.y + BottomPadding
	return st.doc
}

type state struct {
	engine *Engine
	doc    *Document
	width  float64
	base   string
	y      float64
}

// isBlockLevel reports whether a styled node starts a new block.
// Display is style-driven so stylesheets can flip it.
func isBlockLevel(n *css.StyledNode) bool {
	if n.Node.Type != html.ElementNode {
		return false
	}
	switch n.Style.GetDefault("display", "inline") {
	case "block", "list-item":
		return true
	}
	return false
}

// marginPx reads a side margin, falling back to the margin shorthand.
func marginPx(style *css.ComputedStyle, side string) float64 {
	return style.GetPx(side, style.GetPx("margin", 0))
}

func (st *state) layoutBlock(n *css.StyledNode, left, right float64) {
	style := n.Style
	left += marginPx(style, "margin-left") + style.GetPx("padding-left", 0)
	right -= marginPx(style, "margin-right")
	if right <= left {
		right = left + 1
	}

	st.y += marginPx(style, "margin-top")
	startY := st.y

	hasBlockChild := false
	for _, c := range n.Children {
		if isBlockLevel(c) {
			hasBlockChild = true
			break
		}
	}

	bullet := style.Get("display") == "list-item"

	if hasBlockChild {
		// Consecutive inline children form anonymous runs between
		// the block-level children.
		var run []*css.StyledNode
		flushRun := func() {
			if len(run) > 0 {
				st.flowInline(run, n, left, right, bullet)
				bullet = false
				run = nil
			}
		}
		for _, c := range n.Children {
			if isBlockLevel(c) {
				flushRun()
				st.layoutBlock(c, left, right)
			} else {
				run = append(run, c)
			}
		}
		flushRun()
	} else {
		st.flowInline(n.Children, n, left, right, bullet)
	}

	st.y += marginPx(style, "margin-bottom")

	kind := KindBlock
	if style.Get("display") == "list-item" {
		kind = KindListItem
	}
	st.doc.Blocks = append(st.doc.Blocks, &Block{
		Tag:    n.Node.Tag,
		Kind:   kind,
		X:      left,
		Y:      startY,
		Width:  right - left,
		Height: st.y - startY,
	})
}

// runContext is the per-segment style context of inline flow.
type runContext struct {
	style     *css.ComputedStyle
	face      font.Face
	fontSize  float64
	family    string
	weight    string
	fontStyle string
	link      string
	underline bool
}

func (st *state) contextFor(style *css.ComputedStyle, link string) runContext {
	family := style.GetDefault("font-family", "sans-serif")
	size := style.GetPx("font-size", text.DefaultFontSize)
	weight := style.Get("font-weight")
	fstyle := style.Get("font-style")
	face, err := st.engine.fonts.Face(family, size, weight, fstyle)
	if err != nil {
		st.engine.logger.Warn("font face unavailable", "family", family, "error", err)
		face, _ = st.engine.fonts.Face("sans-serif", text.DefaultFontSize, "", "")
	}
	return runContext{
		style:     style,
		face:      face,
		fontSize:  size,
		family:    family,
		weight:    weight,
		fontStyle: fstyle,
		link:      link,
		underline: style.Get("text-decoration") == "underline",
	}
}

type segment struct {
	ctx    runContext
	text   string
	startX float64
}

type lineBuilder struct {
	st          *state
	left, right float64
	align       string
	x           float64
	segs        []*segment
}

func (st *state) flowInline(children []*css.StyledNode, block *css.StyledNode, left, right float64, bullet bool) {
	lb := &lineBuilder{
		st:    st,
		left:  left,
		right: right,
		align: block.Style.Get("text-align"),
		x:     left,
	}
	if bullet {
		ctx := st.contextFor(block.Style, "")
		lb.appendText("•", ctx)
		lb.x += st.engine.fonts.Measure(ctx.face, "•")
	}
	for _, c := range children {
		lb.flow(c, "")
	}
	lb.flush(blockLineHeight(block.Style))
}

func (lb *lineBuilder) flow(n *css.StyledNode, link string) {
	if n.Node.Type == html.TextNode {
		ctx := lb.st.contextFor(n.Style, link)
		for _, word := range strings.Fields(n.Node.Text) {
			lb.addWord(word, ctx)
		}
		return
	}

	switch n.Node.Tag {
	case "img":
		lb.st.placeImage(n, lb)
		return
	case "a":
		if href := n.Node.Attr("href"); href != "" {
			if resolved, err := network.Resolve(lb.st.base, href); err == nil {
				link = resolved
			} else {
				link = href
			}
		}
	case "br":
		lb.flush(blockLineHeight(n.Style))
		return
	}
	for _, c := range n.Children {
		lb.flow(c, link)
	}
}

func (lb *lineBuilder) addWord(word string, ctx runContext) {
	wordW := lb.st.engine.fonts.Measure(ctx.face, word)
	spaceW := 0.0
	if lb.x > lb.left {
		spaceW = lb.st.engine.fonts.Measure(ctx.face, " ")
	}
	// A word wraps only when the line already holds something; an
	// overwide lone word keeps its own line.
	if lb.x > lb.left && lb.x+spaceW+wordW > lb.right {
		lb.flush(0)
		spaceW = 0
	}
	if spaceW > 0 {
		lb.appendText(" "+word, ctx)
		lb.x += spaceW + wordW
	} else {
		lb.appendText(word, ctx)
		lb.x += wordW
	}
}

// appendText adds text to the current segment, opening a new one when
// the style context changes.
func (lb *lineBuilder) appendText(s string, ctx runContext) {
	if len(lb.segs) > 0 {
		last := lb.segs[len(lb.segs)-1]
		if last.ctx == ctx {
			last.text += s
			return
		}
		// A run boundary swallows the leading space into the new
		// segment; positions stay correct because startX is measured
		// from the line cursor.
	}
	lb.segs = append(lb.segs, &segment{ctx: ctx, text: strings.TrimPrefix(s, " "), startX: lb.x + leadingSpace(lb, s, ctx)})
}

func leadingSpace(lb *lineBuilder, s string, ctx runContext) float64 {
	if strings.HasPrefix(s, " ") {
		return lb.st.engine.fonts.Measure(ctx.face, " ")
	}
	return 0
}

// flush emits the pending segments as Line records sharing one
// baseline and advances the vertical cursor. minHeight lifts the
// advance for empty or short lines; pass 0 to skip empty flushes.
func (lb *lineBuilder) flush(minHeight float64) {
	if len(lb.segs) == 0 {
		if minHeight > 0 {
			lb.st.y += minHeight
		}
		return
	}

	maxSize := 0.0
	for _, seg := range lb.segs {
		if seg.ctx.fontSize > maxSize {
			maxSize = seg.ctx.fontSize
		}
	}
	lineHeight := LineSpacing * maxSize
	if minHeight > lineHeight {
		lineHeight = minHeight
	}

	shift := 0.0
	switch lb.align {
	case "center":
		shift = (lb.right - lb.x) / 2
	case "right":
		shift = lb.right - lb.x
	}
	if shift < 0 {
		shift = 0
	}

	for _, seg := range lb.segs {
		positions := lb.st.engine.fonts.Advances(seg.ctx.face, seg.text)
		width := positions[len(positions)-1]
		lb.st.doc.Lines = append(lb.st.doc.Lines, &Line{
			Text:          seg.text,
			X:             seg.startX + shift,
			Y:             lb.st.y,
			Width:         width,
			Height:        lineHeight,
			FontSize:      seg.ctx.fontSize,
			FontFamily:    seg.ctx.family,
			FontWeight:    seg.ctx.weight,
			FontStyle:     seg.ctx.fontStyle,
			CharPositions: positions,
			Color:         seg.ctx.style.Get("color"),
			Link:          seg.ctx.link,
			Underline:     seg.ctx.underline,
		})
		lb.st.doc.Blocks = append(lb.st.doc.Blocks, &Block{
			Tag:    "#text",
			Kind:   KindText,
			X:      seg.startX + shift,
			Y:      lb.st.y,
			Width:  width,
			Height: lineHeight,
		})
	}

	lb.st.y += lineHeight
	lb.x = lb.left
	lb.segs = nil
}

// blockLineHeight resolves the line-height property against the
// block's font size. Bare numbers multiply; px values are absolute.
func blockLineHeight(style *css.ComputedStyle) float64 {
	size := style.GetPx("font-size", text.DefaultFontSize)
	v := strings.TrimSpace(style.Get("line-height"))
	if v == "" {
		return LineSpacing * size
	}
	if strings.HasSuffix(v, "px") {
		return style.GetPx("line-height", LineSpacing*size)
	}
	if mult, err := strconv.ParseFloat(v, 64); err == nil && mult > 0 {
		return mult * size
	}
	return LineSpacing * size
}

// placeImage flushes the current line and positions an image box at
// the cursor.
func (st *state) placeImage(n *css.StyledNode, lb *lineBuilder) {
	lb.flush(0)

	src := n.Node.Attr("src")
	locator := ""
	if src != "" && st.engine.loader != nil {
		resolved, err := st.engine.loader.Resolve(st.base, src)
		if err != nil {
			st.engine.logger.Warn("unresolvable image source", "src", src, "error", err)
		} else {
			locator = resolved
		}
	}

	w, h := st.imageSize(n, locator, lb.right-lb.left)

	st.y += marginPx(n.Style, "margin-top")
	box := &ImageBox{
		X:       lb.left,
		Y:       st.y,
		Width:   w,
		Height:  h,
		Locator: locator,
		Alt:     n.Node.Attr("alt"),
	}
	st.doc.Images = append(st.doc.Images, box)
	st.doc.Blocks = append(st.doc.Blocks, &Block{
		Tag: "img", Kind: KindInline, X: box.X, Y: box.Y, Width: w, Height: h,
	})
	st.y += h + marginPx(n.Style, "margin-bottom")
}

// imageSize resolves display dimensions: explicit attributes first,
// then intrinsic size from the cache, then the fixed placeholder,
// always clamped to the content width preserving aspect.
func (st *state) imageSize(n *css.StyledNode, locator string, maxWidth float64) (float64, float64) {
	attrW := attrPx(n.Node, "width")
	attrH := attrPx(n.Node, "height")

	iw, ih := PlaceholderW, PlaceholderH
	if locator != "" && st.engine.loader != nil {
		if state, img := st.engine.loader.Lookup(locator); state == images.StateLoaded && img != nil {
			iw = float64(img.Bounds().Dx())
			ih = float64(img.Bounds().Dy())
		}
	}
	if iw <= 0 || ih <= 0 {
		iw, ih = PlaceholderW, PlaceholderH
	}

	var w, h float64
	switch {
	case attrW > 0 && attrH > 0:
		w, h = attrW, attrH
	case attrW > 0:
		w, h = attrW, attrW*(ih/iw)
	case attrH > 0:
		w, h = attrH*(iw/ih), attrH
	default:
		w, h = iw, ih
	}

	if maxWidth > 0 && w > maxWidth {
		h = h * (maxWidth / w)
		w = maxWidth
	}
	return w, h
}

func attrPx(n *html.Node, name string) float64 {
	v := strings.TrimSpace(strings.TrimSuffix(n.Attr(name), "px"))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}
