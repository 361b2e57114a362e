// Package render paints laid-out documents onto a drawing surface.
package render

import (
	"image"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"

	"perch/css"
)

// Surface is the drawing target of the paint pass. Coordinates are
// viewport pixels; painting happens after scroll translation.
type Surface interface {
	// Clear fills the whole surface with a color.
	Clear(c css.Color)
	// FillRect fills an axis-aligned rectangle.
	FillRect(x, y, w, h float64, c css.Color)
	// StrokeRect outlines an axis-aligned rectangle.
	StrokeRect(x, y, w, h, lineWidth float64, c css.Color)
	// Line draws a straight line segment.
	Line(x1, y1, x2, y2, lineWidth float64, c css.Color)
	// Text draws a string with its baseline at (x, y).
	Text(s string, x, y float64, face font.Face, c css.Color)
	// Image draws img scaled to the w×h box at (x, y).
	Image(img image.Image, x, y, w, h float64)
}

// ImageSurface renders into an in-memory RGBA image via gg.
type ImageSurface struct {
	ctx    *gg.Context
	width  int
	height int
}

// NewImageSurface creates a surface of the given pixel size.
func NewImageSurface(width, height int) *ImageSurface {
	return &ImageSurface{
		ctx:    gg.NewContext(width, height),
		width:  width,
		height: height,
	}
}

func (s *ImageSurface) setColor(c css.Color) {
	s.ctx.SetRGBA255(int(c.R), int(c.G), int(c.B), int(c.A))
}

// Clear implements Surface.
func (s *ImageSurface) Clear(c css.Color) {
	s.setColor(c)
	s.ctx.Clear()
}

// FillRect implements Surface.
func (s *ImageSurface) FillRect(x, y, w, h float64, c css.Color) {
	s.setColor(c)
	s.ctx.DrawRectangle(x, y, w, h)
	s.ctx.Fill()
}

// StrokeRect implements Surface.
func (s *ImageSurface) StrokeRect(x, y, w, h, lineWidth float64, c css.Color) {
	s.setColor(c)
	s.ctx.SetLineWidth(lineWidth)
	s.ctx.DrawRectangle(x, y, w, h)
	s.ctx.Stroke()
}

// Line implements Surface.
func (s *ImageSurface) Line(x1, y1, x2, y2, lineWidth float64, c css.Color) {
	s.setColor(c)
	s.ctx.SetLineWidth(lineWidth)
	s.ctx.DrawLine(x1, y1, x2, y2)
	s.ctx.Stroke()
}

// Text implements Surface.
func (s *ImageSurface) Text(str string, x, y float64, face font.Face, c css.Color) {
	s.setColor(c)
	s.ctx.SetFontFace(face)
	s.ctx.DrawString(str, x, y)
}

// Image implements Surface. Source pixels are rescaled to the target
// box when the sizes differ.
func (s *ImageSurface) Image(img image.Image, x, y, w, h float64) {
	tw, th := int(w+0.5), int(h+0.5)
	if tw <= 0 || th <= 0 {
		return
	}
	b := img.Bounds()
	if b.Dx() != tw || b.Dy() != th {
		scaled := image.NewRGBA(image.Rect(0, 0, tw, th))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, b, xdraw.Over, nil)
		img = scaled
	}
	s.ctx.DrawImage(img, int(x+0.5), int(y+0.5))
}

// Result returns the rendered image.
func (s *ImageSurface) Result() image.Image {
	return s.ctx.Image()
}

// SavePNG writes the rendered image to a PNG file.
func (s *ImageSurface) SavePNG(path string) error {
	return s.ctx.SavePNG(path)
}
