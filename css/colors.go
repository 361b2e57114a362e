package css

import (
	"strconv"
	"strings"
)

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

var (
	Black = Color{0, 0, 0, 255}
	White = Color{255, 255, 255, 255}
)

// namedColors covers the names the default styles and common pages
// use. Unknown names fall back to the caller's default.
var namedColors = map[string]Color{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"orange":      {255, 165, 0, 255},
	"purple":      {128, 0, 128, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"silver":      {192, 192, 192, 255},
	"maroon":      {128, 0, 0, 255},
	"navy":        {0, 0, 128, 255},
	"teal":        {0, 128, 128, 255},
	"olive":       {128, 128, 0, 255},
	"lime":        {0, 255, 0, 255},
	"aqua":        {0, 255, 255, 255},
	"cyan":        {0, 255, 255, 255},
	"fuchsia":     {255, 0, 255, 255},
	"magenta":     {255, 0, 255, 255},
	"brown":       {165, 42, 42, 255},
	"pink":        {255, 192, 203, 255},
	"transparent": {0, 0, 0, 0},
}

// ParseColor parses a named color or a #rgb / #rrggbb hex color. The
// second return value reports whether parsing succeeded.
func ParseColor(s string) (Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Color{}, false
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:])
	}
	return Color{}, false
}

// ParseColorDefault parses a color, falling back to def on failure.
func ParseColorDefault(s string, def Color) Color {
	if c, ok := ParseColor(s); ok {
		return c
	}
	return def
}

func parseHexColor(hex string) (Color, bool) {
	switch len(hex) {
	case 3:
		r, okR := hexNibble(hex[0])
		g, okG := hexNibble(hex[1])
		b, okB := hexNibble(hex[2])
		if !okR || !okG || !okB {
			return Color{}, false
		}
		return Color{r * 17, g * 17, b * 17, 255}, true
	case 6:
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, false
		}
		return Color{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}, true
	}
	return Color{}, false
}

func hexNibble(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}

// NearWhite reports whether a color is close enough to white that
// text drawn in it would be invisible against the default background.
func (c Color) NearWhite() bool {
	return c.R >= 240 && c.G >= 240 && c.B >= 240
}
