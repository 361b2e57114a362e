// Package css provides stylesheet parsing, selector matching and
// cascade-based style computation over parsed node trees.
package css

import (
	"strings"

	"perch/html"
)

// Declaration is a single property: value pair.
type Declaration struct {
	Property string
	Value    string
}

// Rule pairs a selector with an ordered list of declarations. Rules
// produced from a comma-separated selector list share one declaration
// slice.
type Rule struct {
	Selector     Selector
	Declarations []Declaration
}

// Get returns the value of the named property within the rule, or "".
func (r Rule) Get(property string) string {
	for _, d := range r.Declarations {
		if d.Property == property {
			return d.Value
		}
	}
	return ""
}

// ParseStylesheet parses stylesheet text into an ordered rule list.
// The tokenizer is brace/colon/semicolon driven and recovers from a
// missing closing brace by treating end-of-input as an implicit close.
// Malformed declarations are dropped silently.
func ParseStylesheet(text string) []Rule {
	p := &sheetParser{input: text}
	var rules []Rule

	for {
		p.skipBlank()
		if p.done() {
			return rules
		}

		selText, ok := p.readUntil('{')
		if !ok {
			// Trailing garbage with no rule body.
			return rules
		}
		decls := p.readDeclarations()

		for _, part := range strings.Split(selText, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			rules = append(rules, Rule{
				Selector:     ParseSelector(part),
				Declarations: decls,
			})
		}
	}
}

// ParseInline parses the contents of a style attribute: declarations
// with no surrounding braces.
func ParseInline(text string) []Declaration {
	p := &sheetParser{input: text}
	return p.readDeclarations()
}

type sheetParser struct {
	input string
	pos   int
}

func (p *sheetParser) done() bool {
	return p.pos >= len(p.input)
}

func (p *sheetParser) peek() byte {
	return p.input[p.pos]
}

// skipBlank consumes whitespace and /* */ comments.
func (p *sheetParser) skipBlank() {
	for !p.done() {
		switch {
		case isSpaceByte(p.peek()):
			p.pos++
		case strings.HasPrefix(p.input[p.pos:], "/*"):
			end := strings.Index(p.input[p.pos+2:], "*/")
			if end < 0 {
				p.pos = len(p.input)
				return
			}
			p.pos += 2 + end + 2
		default:
			return
		}
	}
}

// readUntil consumes through the next occurrence of stop, returning
// the text before it with comments stripped. Returns false if stop is
// never found.
func (p *sheetParser) readUntil(stop byte) (string, bool) {
	var sb strings.Builder
	for !p.done() {
		if strings.HasPrefix(p.input[p.pos:], "/*") {
			end := strings.Index(p.input[p.pos+2:], "*/")
			if end < 0 {
				p.pos = len(p.input)
				break
			}
			p.pos += 2 + end + 2
			continue
		}
		c := p.peek()
		p.pos++
		if c == stop {
			return strings.TrimSpace(sb.String()), true
		}
		sb.WriteByte(c)
	}
	return strings.TrimSpace(sb.String()), false
}

// readDeclarations consumes property: value pairs up to a closing
// brace or end of input (implicit close). Declarations missing a colon
// or a value are dropped.
func (p *sheetParser) readDeclarations() []Declaration {
	var decls []Declaration
	for {
		p.skipBlank()
		if p.done() {
			return decls
		}
		if p.peek() == '}' {
			p.pos++
			return decls
		}
		if p.peek() == ';' {
			p.pos++
			continue
		}

		// Scan one declaration: text up to ';' or '}'.
		start := p.pos
		colon := -1
		for !p.done() && p.peek() != ';' && p.peek() != '}' {
			if p.peek() == ':' && colon < 0 {
				colon = p.pos
			}
			p.pos++
		}
		end := p.pos
		if !p.done() && p.peek() == ';' {
			p.pos++
		}

		if colon < 0 {
			continue // no colon: dropped
		}
		prop := strings.ToLower(strings.TrimSpace(p.input[start:colon]))
		val := strings.TrimSpace(stripComments(p.input[colon+1 : end]))
		if prop == "" || val == "" {
			continue
		}
		decls = append(decls, Declaration{Property: prop, Value: val})
	}
}

func stripComments(s string) string {
	for {
		i := strings.Index(s, "/*")
		if i < 0 {
			return s
		}
		j := strings.Index(s[i+2:], "*/")
		if j < 0 {
			return s[:i]
		}
		s = s[:i] + " " + s[i+2+j+2:]
	}
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

// CollectStyleText extracts and concatenates the contents of every
// <style> element in a parsed tree. The markup parser preserves style
// content as text children precisely for this step.
func CollectStyleText(root *html.Node) string {
	var sb strings.Builder
	root.Walk(func(n *html.Node) {
		if n.Type == html.ElementNode && n.Tag == "style" {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(n.TextContent())
		}
	})
	return sb.String()
}
