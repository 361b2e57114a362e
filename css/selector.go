package css

import (
	"strings"

	"perch/html"
)

// Specificity ranks a selector's precision as (id count, class count,
// tag count). Comparison is lexicographic; higher wins the cascade.
type Specificity [3]int

// Compare returns -1, 0 or 1 as s sorts before, equal to or after o.
func (s Specificity) Compare(o Specificity) int {
	for i := range s {
		if s[i] != o[i] {
			if s[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Selector is a simple compound selector: an optional tag name, an
// optional id and a set of class names, e.g. "div#main.active".
type Selector struct {
	Tag     string
	ID      string
	Classes []string
}

// ParseSelector parses a compound selector string. Unrecognized
// characters terminate the current simple selector; there is no error
// case, only a best-effort parse.
func ParseSelector(text string) Selector {
	var sel Selector
	text = strings.TrimSpace(text)

	i := 0
	for i < len(text) {
		switch text[i] {
		case '#':
			name, next := readName(text, i+1)
			sel.ID = name
			i = next
		case '.':
			name, next := readName(text, i+1)
			if name != "" {
				sel.Classes = append(sel.Classes, name)
			}
			i = next
		default:
			name, next := readName(text, i)
			if next == i {
				// Not a name character; skip it.
				i++
				continue
			}
			sel.Tag = strings.ToLower(name)
			i = next
		}
	}
	return sel
}

func readName(s string, start int) (string, int) {
	i := start
	for i < len(s) && isNameByte(s[i]) {
		i++
	}
	return s[start:i], i
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' || b == '-' || b == '_'
}

// Specificity returns the selector's cascade rank.
func (s Selector) Specificity() Specificity {
	var sp Specificity
	if s.ID != "" {
		sp[0] = 1
	}
	sp[1] = len(s.Classes)
	if s.Tag != "" {
		sp[2] = 1
	}
	return sp
}

// Matches reports whether the selector matches an element. Each
// component is checked only when constrained: tag equality, id
// equality, and the selector's classes being a subset of the
// element's.
func (s Selector) Matches(el *html.Node) bool {
	if el == nil || el.Type != html.ElementNode {
		return false
	}
	if s.Tag != "" && s.Tag != el.Tag {
		return false
	}
	if s.ID != "" && s.ID != el.ID() {
		return false
	}
	if len(s.Classes) > 0 {
		have := el.Classes()
		for _, want := range s.Classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (s Selector) String() string {
	var sb strings.Builder
	sb.WriteString(s.Tag)
	if s.ID != "" {
		sb.WriteByte('#')
		sb.WriteString(s.ID)
	}
	for _, c := range s.Classes {
		sb.WriteByte('.')
		sb.WriteString(c)
	}
	return sb.String()
}
