// Package text provides font faces and text measurement for layout.
//
// Faces are built from the Go font family bundled with
// golang.org/x/image, so measurement is fully deterministic and needs
// no system font lookup.
package text

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// DefaultFontSize is the font size used when a style sets none.
const DefaultFontSize = 14.0

// faceKey identifies one cached face.
type faceKey struct {
	family string // "sans", "mono"
	weight string // "", "bold"
	style  string // "", "italic"
	size   float64
}

// fontData maps face variants to their embedded TTF bytes. The mono
// family has no bold or italic variants in the bundle, so all mono
// requests collapse onto the regular mono face.
var fontData = map[[3]string][]byte{
	{"sans", "", ""}:           goregular.TTF,
	{"sans", "bold", ""}:       gobold.TTF,
	{"sans", "", "italic"}:     goitalic.TTF,
	{"sans", "bold", "italic"}: gobolditalic.TTF,
	{"mono", "", ""}:           gomono.TTF,
}

// Service parses and caches font faces. It is safe for concurrent
// use, though in practice all measurement happens on the render
// goroutine.
type Service struct {
	mu    sync.Mutex
	fonts map[[3]string]*opentype.Font
	faces map[faceKey]font.Face
}

// NewService creates an empty font service. Fonts are parsed lazily
// on first use.
func NewService() *Service {
	return &Service{
		fonts: make(map[[3]string]*opentype.Font),
		faces: make(map[faceKey]font.Face),
	}
}

// Face returns a cached face for the given style properties. family
// is a CSS font-family value ("monospace" selects the mono family,
// anything else the sans family), weight is "bold" or anything else,
// style is "italic" or anything else.
func (s *Service) Face(family string, size float64, weight, style string) (font.Face, error) {
	if size <= 0 {
		size = DefaultFontSize
	}
	key := faceKey{family: normalizeFamily(family), size: size}
	if strings.Contains(weight, "bold") {
		key.weight = "bold"
	}
	if style == "italic" || style == "oblique" {
		key.style = "italic"
	}
	if key.family == "mono" {
		// Single mono variant only.
		key.weight, key.style = "", ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if face, ok := s.faces[key]; ok {
		return face, nil
	}

	variant := [3]string{key.family, key.weight, key.style}
	fnt, ok := s.fonts[variant]
	if !ok {
		data, ok := fontData[variant]
		if !ok {
			data = goregular.TTF
		}
		parsed, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("text: parse font %v: %w", variant, err)
		}
		fnt = parsed
		s.fonts[variant] = fnt
	}

	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("text: create face %v@%g: %w", variant, size, err)
	}
	s.faces[key] = face
	return face, nil
}

// Reset drops all cached faces and parsed fonts.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fonts = make(map[[3]string]*opentype.Font)
	s.faces = make(map[faceKey]font.Face)
}

// Measure returns the advance width of text in pixels.
func (s *Service) Measure(face font.Face, text string) float64 {
	return fixedToFloat(font.MeasureString(face, text))
}

// Advances returns cumulative advance offsets for each character
// boundary of text: Advances(face, t)[i] is the x offset of the
// start of the i-th rune. The slice has len(runes)+1 entries and
// always starts at 0.
func (s *Service) Advances(face font.Face, text string) []float64 {
	runes := []rune(text)
	out := make([]float64, 0, len(runes)+1)
	out = append(out, 0)
	var x fixed.Int26_6
	prev := rune(-1)
	for _, r := range runes {
		if prev >= 0 {
			x += face.Kern(prev, r)
		}
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			adv, _ = face.GlyphAdvance('?')
		}
		x += adv
		out = append(out, fixedToFloat(x))
		prev = r
	}
	return out
}

func normalizeFamily(family string) string {
	for _, part := range strings.Split(family, ",") {
		if strings.TrimSpace(strings.Trim(strings.TrimSpace(part), `"'`)) == "monospace" {
			return "mono"
		}
	}
	return "sans"
}

func fixedToFloat(x fixed.Int26_6) float64 {
	return float64(x) / 64.0
}
