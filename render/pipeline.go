package render

import (
	"log/slog"

	"perch/css"
	"perch/images"
	"perch/layout"
	"perch/tasks"
	"perch/text"
)

// CullMargin extends the visible band above and below the viewport so
// partially scrolled-in content still paints.
const CullMargin = 50.0

// Overlay tints for debug painting, one per block kind.
var debugColors = map[layout.BlockKind]css.Color{
	layout.KindBlock:    {R: 255, G: 0, B: 0, A: 60},
	layout.KindInline:   {R: 0, G: 0, B: 255, A: 60},
	layout.KindListItem: {R: 0, G: 128, B: 0, A: 60},
	layout.KindText:     {R: 255, G: 255, B: 0, A: 60},
}

type layoutKey struct {
	root  *css.StyledNode
	width float64
	base  string
}

// Pipeline drives the per-frame work: drain completions, lay out or
// reuse the cached document, paint. It must only be used from one
// goroutine (the render loop).
type Pipeline struct {
	fonts     *text.Service
	engine    *layout.Engine
	loader    *images.Loader
	scheduler *tasks.Scheduler
	logger    *slog.Logger

	debug bool

	cacheKey layoutKey
	cached   *layout.Document
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLoader wires the image loader used for drawing and async loads.
func WithLoader(l *images.Loader) PipelineOption {
	return func(p *Pipeline) {
		p.loader = l
	}
}

// WithScheduler wires the scheduler drained at the top of each frame.
func WithScheduler(s *tasks.Scheduler) PipelineOption {
	return func(p *Pipeline) {
		p.scheduler = s
	}
}

// WithDebugOverlay enables tinted box outlines over the page.
func WithDebugOverlay(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.debug = enabled
	}
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline around a font service.
func NewPipeline(fonts *text.Service, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		fonts:  fonts,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.engine = layout.NewEngine(fonts, p.loader, p.logger)
	return p
}

// Invalidate drops the cached document so the next Render lays out
// again. Async image completions call this.
func (p *Pipeline) Invalidate() {
	p.cached = nil
}

// Layout returns the document for (root, width, base), reusing the
// cache when nothing changed.
func (p *Pipeline) Layout(root *css.StyledNode, width float64, base string) *layout.Document {
	key := layoutKey{root: root, width: width, base: base}
	if p.cached != nil && p.cacheKey == key {
		return p.cached
	}
	doc := p.engine.Layout(root, width, base)
	p.cacheKey = key
	p.cached = doc
	return doc
}

// DocumentHeight returns the laid-out height of the page.
func (p *Pipeline) DocumentHeight(root *css.StyledNode, width float64, base string) float64 {
	return p.Layout(root, width, base).Height
}

// TextLayout exposes the current document's lines for selection and
// link hit testing.
func (p *Pipeline) TextLayout(root *css.StyledNode, width float64, base string) *layout.Document {
	return p.Layout(root, width, base)
}

// Render paints one frame of the styled tree into the surface.
// Completions queued by background work land first, so a frame always
// paints the freshest cache state.
func (p *Pipeline) Render(s Surface, root *css.StyledNode, width, height, scrollY float64, base string) *layout.Document {
	if p.scheduler != nil {
		p.scheduler.Drain()
	}

	doc := p.Layout(root, width, base)
	p.requestImages(doc)

	s.Clear(css.White)

	top := scrollY - CullMargin
	bottom := scrollY + height + CullMargin

	for _, box := range doc.Images {
		if box.Y+box.Height < top || box.Y > bottom {
			continue
		}
		p.paintImage(s, box, scrollY)
	}

	for _, line := range doc.Lines {
		if line.Y+line.Height < top || line.Y > bottom {
			continue
		}
		p.paintLine(s, line, scrollY)
	}

	if p.debug {
		for _, b := range doc.Blocks {
			if b.Y+b.Height < top || b.Y > bottom {
				continue
			}
			s.FillRect(b.X, b.Y-scrollY, b.Width, b.Height, debugColors[b.Kind])
		}
	}

	return doc
}

// requestImages starts background loads for every image the document
// references that the cache has not seen yet.
func (p *Pipeline) requestImages(doc *layout.Document) {
	if p.loader == nil {
		return
	}
	for _, box := range doc.Images {
		if box.Locator == "" {
			continue
		}
		if state, _ := p.loader.Lookup(box.Locator); state != images.StateAbsent {
			continue
		}
		p.loader.LoadAsync(box.Locator, p.Invalidate)
	}
}

func (p *Pipeline) paintLine(s Surface, line *layout.Line, scrollY float64) {
	face, err := p.fonts.Face(line.FontFamily, line.FontSize, line.FontWeight, line.FontStyle)
	if err != nil {
		p.logger.Warn("face unavailable at paint", "error", err)
		return
	}

	col := css.ParseColorDefault(line.Color, css.Black)
	if col.NearWhite() {
		// Invisible against the page background.
		col = css.Black
	}

	baseline := line.Y + line.FontSize - scrollY
	s.Text(line.Text, line.X, baseline, face, col)

	if line.Underline {
		uy := baseline + 2
		s.Line(line.X, uy, line.X+line.Width, uy, 1, col)
	}
}

func (p *Pipeline) paintImage(s Surface, box *layout.ImageBox, scrollY float64) {
	y := box.Y - scrollY

	if p.loader != nil && box.Locator != "" {
		if state, img := p.loader.Lookup(box.Locator); state == images.StateLoaded && img != nil {
			s.Image(img, box.X, y, box.Width, box.Height)
			return
		}
	}

	// Pending or failed: bordered placeholder with the alt text.
	gray := css.Color{R: 128, G: 128, B: 128, A: 255}
	s.StrokeRect(box.X, y, box.Width, box.Height, 1, gray)
	if box.Alt != "" {
		face, err := p.fonts.Face("sans-serif", text.DefaultFontSize, "", "")
		if err == nil {
			s.Text(box.Alt, box.X+4, y+text.DefaultFontSize+4, face, gray)
		}
	}
}
