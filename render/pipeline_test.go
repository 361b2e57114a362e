package render

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"

	"perch/css"
	"perch/html"
	"perch/images"
	"perch/layout"
	"perch/network"
	"perch/tasks"
	"perch/text"
)

// recorder is a Surface that records draw calls for assertions.
type recorder struct {
	clears []css.Color
	fills  []rectOp
	rects  []rectOp
	lines  []lineOp
	texts  []textOp
	images []rectOp
}

type rectOp struct {
	x, y, w, h float64
	c          css.Color
}

type lineOp struct {
	x1, y1, x2, y2 float64
	c              css.Color
}

type textOp struct {
	s    string
	x, y float64
	c    css.Color
}

func (r *recorder) Clear(c css.Color) { r.clears = append(r.clears, c) }
func (r *recorder) FillRect(x, y, w, h float64, c css.Color) {
	r.fills = append(r.fills, rectOp{x, y, w, h, c})
}
func (r *recorder) StrokeRect(x, y, w, h, _ float64, c css.Color) {
	r.rects = append(r.rects, rectOp{x, y, w, h, c})
}
func (r *recorder) Line(x1, y1, x2, y2, _ float64, c css.Color) {
	r.lines = append(r.lines, lineOp{x1, y1, x2, y2, c})
}
func (r *recorder) Text(s string, x, y float64, _ font.Face, c css.Color) {
	r.texts = append(r.texts, textOp{s, x, y, c})
}
func (r *recorder) Image(_ image.Image, x, y, w, h float64) {
	r.images = append(r.images, rectOp{x: x, y: y, w: w, h: h})
}

func styledPage(t *testing.T, markup, extraCSS string) *css.StyledNode {
	t.Helper()
	return css.StyleDocument(html.Parse(markup), extraCSS)
}

const testBase = "http://example.com/page.html"

func TestRenderHelloWorld(t *testing.T) {
	p := NewPipeline(text.NewService())
	rec := &recorder{}
	root := styledPage(t, "<p>Hello World</p>", "")

	doc := p.Render(rec, root, 800, 600, 0, testBase)

	require.Len(t, rec.clears, 1)
	assert.Equal(t, css.White, rec.clears[0])
	require.Len(t, rec.texts, 1)
	op := rec.texts[0]
	assert.Equal(t, "Hello World", op.s)
	// Baseline sits at line top + font size.
	assert.Equal(t, doc.Lines[0].Y+14, op.y)
	assert.Equal(t, css.Black, op.c)
}

func TestRenderScrollTranslation(t *testing.T) {
	p := NewPipeline(text.NewService())
	rec := &recorder{}
	root := styledPage(t, "<p>Hello World</p>", "")

	doc := p.Render(rec, root, 800, 600, 10, testBase)
	require.Len(t, rec.texts, 1)
	assert.Equal(t, doc.Lines[0].Y+14-10, rec.texts[0].y)
}

func TestRenderCulling(t *testing.T) {
	p := NewPipeline(text.NewService())
	root := styledPage(t, `<p style="margin-top: 2000px">far below</p><p>immediately after</p>`, "")

	rec := &recorder{}
	p.Render(rec, root, 800, 600, 0, testBase)
	assert.Empty(t, rec.texts, "content 2000px down must be culled at scroll 0")

	rec = &recorder{}
	p.Render(rec, root, 800, 600, 1800, testBase)
	assert.NotEmpty(t, rec.texts, "scrolled near the content it paints")
}

func TestRenderCullMarginKeepsEdgeContent(t *testing.T) {
	p := NewPipeline(text.NewService())
	// Line lands at y≈624: outside the 600px viewport but inside the
	// 50px cull margin.
	root := styledPage(t, `<p style="margin-top: 600px; margin-bottom: 0">edge</p>`, "")
	rec := &recorder{}
	p.Render(rec, root, 800, 600, 0, testBase)
	assert.NotEmpty(t, rec.texts)
}

func TestRenderColorAndNearWhiteFallback(t *testing.T) {
	p := NewPipeline(text.NewService())

	rec := &recorder{}
	p.Render(rec, styledPage(t, `<p style="color: green">ok</p>`, ""), 800, 600, 0, testBase)
	require.Len(t, rec.texts, 1)
	assert.Equal(t, css.Color{R: 0, G: 128, B: 0, A: 255}, rec.texts[0].c)

	rec = &recorder{}
	p.Render(rec, styledPage(t, `<p style="color: #ffffff">ghost</p>`, ""), 800, 600, 0, testBase)
	require.Len(t, rec.texts, 1)
	assert.Equal(t, css.Black, rec.texts[0].c, "near-white text falls back to default")
}

func TestRenderUnderlinesLinks(t *testing.T) {
	p := NewPipeline(text.NewService())
	rec := &recorder{}
	doc := p.Render(rec, styledPage(t, `<p><a href="x">link</a></p>`, ""), 800, 600, 0, testBase)

	require.Len(t, rec.lines, 1)
	line := doc.Lines[0]
	assert.Equal(t, line.X, rec.lines[0].x1)
	assert.Equal(t, line.X+line.Width, rec.lines[0].x2)
	assert.Equal(t, rec.lines[0].y1, rec.lines[0].y2)
}

func TestRenderImagePlaceholder(t *testing.T) {
	loader := images.NewLoader()
	p := NewPipeline(text.NewService(), WithLoader(loader))
	rec := &recorder{}
	p.Render(rec, styledPage(t, `<img src="http://example.com/x.png" alt="a cat">`, ""), 800, 600, 0, testBase)

	require.Len(t, rec.rects, 1, "unloaded image paints a border")
	assert.Empty(t, rec.images)
	require.Len(t, rec.texts, 1)
	assert.Equal(t, "a cat", rec.texts[0].s)
}

func TestRenderLoadedImage(t *testing.T) {
	loader := images.NewLoader()
	loader.Preload("http://example.com/x.png", image.NewRGBA(image.Rect(0, 0, 40, 30)))
	p := NewPipeline(text.NewService(), WithLoader(loader))
	rec := &recorder{}
	p.Render(rec, styledPage(t, `<img src="http://example.com/x.png">`, ""), 800, 600, 0, testBase)

	require.Len(t, rec.images, 1)
	assert.Empty(t, rec.rects)
	assert.Equal(t, 40.0, rec.images[0].w)
	assert.Equal(t, 30.0, rec.images[0].h)
}

func TestLayoutCacheIdentity(t *testing.T) {
	p := NewPipeline(text.NewService())
	root := styledPage(t, "<p>stable</p>", "")

	a := p.Layout(root, 800, testBase)
	b := p.Layout(root, 800, testBase)
	assert.Same(t, a, b, "unchanged inputs reuse the cached document")

	c := p.Layout(root, 400, testBase)
	assert.NotSame(t, a, c, "width change rebuilds")

	p.Invalidate()
	d := p.Layout(root, 400, testBase)
	assert.NotSame(t, c, d, "invalidation rebuilds")
}

type pngFetcher struct {
	body []byte
}

func (f *pngFetcher) Fetch(_ context.Context, _ string) (*network.Response, error) {
	return &network.Response{StatusCode: 200, Status: "200 OK", Body: f.body, ContentType: "image/png"}, nil
}

func TestAsyncImageAppearsAfterDrain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 5, 5))))

	sched := tasks.NewScheduler(2, nil)
	defer sched.Close()
	loader := images.NewLoader(
		images.WithFetcher(&pngFetcher{body: buf.Bytes()}),
		images.WithScheduler(sched),
	)
	p := NewPipeline(text.NewService(), WithLoader(loader), WithScheduler(sched))
	root := styledPage(t, `<img src="http://example.com/async.png">`, "")

	// First frame: load not finished, placeholder painted.
	rec := &recorder{}
	p.Render(rec, root, 800, 600, 0, testBase)
	assert.Empty(t, rec.images)

	// Render until the completion lands; the pipeline drains at the
	// top of each frame and invalidates itself.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec = &recorder{}
		p.Render(rec, root, 800, 600, 0, testBase)
		if len(rec.images) == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("image never appeared after async load")
}

func TestDebugOverlay(t *testing.T) {
	p := NewPipeline(text.NewService(), WithDebugOverlay(true))
	rec := &recorder{}
	p.Render(rec, styledPage(t, "<p>tinted</p>", ""), 800, 600, 0, testBase)
	assert.NotEmpty(t, rec.fills, "debug mode paints block tints")
}

func TestImageSurfaceSmoke(t *testing.T) {
	p := NewPipeline(text.NewService())
	s := NewImageSurface(200, 100)
	p.Render(s, styledPage(t, "<p>ink</p>", ""), 200, 100, 0, testBase)

	img := s.Result()
	bounds := img.Bounds()
	assert.Equal(t, 200, bounds.Dx())
	assert.Equal(t, 100, bounds.Dy())

	inked := false
	for y := bounds.Min.Y; y < bounds.Max.Y && !inked; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r < 0xf000 || g < 0xf000 || b < 0xf000 {
				inked = true
				break
			}
		}
	}
	assert.True(t, inked, "rendered text leaves non-white pixels")
}

func TestDocumentHeightAndTextLayout(t *testing.T) {
	p := NewPipeline(text.NewService())
	root := styledPage(t, "<p>one</p><p>two</p>", "")
	h := p.DocumentHeight(root, 800, testBase)
	assert.Greater(t, h, layout.BottomPadding)
	doc := p.TextLayout(root, 800, testBase)
	assert.Len(t, doc.Lines, 2)
}
