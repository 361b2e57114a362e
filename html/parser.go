package html

import (
	"io"
	"strings"

	xhtml "golang.org/x/net/html"
)

// voidTags never take children and are never pushed on the open stack.
var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// headTags belong in the document head when encountered before any
// body content.
var headTags = map[string]bool{
	"base": true, "link": true, "meta": true, "title": true,
}

// Parse builds a node tree from markup text. It is tolerant of
// malformed input: unclosed tags are auto-closed, unknown tags are
// treated as generic containers, and script content is discarded.
// Malformed input degrades to a best-effort tree; Parse never fails.
func Parse(text string) *Node {
	return ParseReader(strings.NewReader(text))
}

// ParseReader is Parse for an io.Reader source.
func ParseReader(r io.Reader) *Node {
	p := &treeBuilder{root: NewElement("html")}
	p.stack = []*Node{p.root}
	p.run(xhtml.NewTokenizer(r))
	p.ensureBody()
	return p.root
}

// treeBuilder holds tree-construction state: the open-element stack and
// the lazily synthesized head and body containers.
type treeBuilder struct {
	root  *Node
	head  *Node
	body  *Node
	stack []*Node
}

func (p *treeBuilder) run(z *xhtml.Tokenizer) {
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			// EOF or unrecoverable input; either way the tree so far
			// is the result.
			return
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data == "script" {
				p.skipRawContent(z, "script")
				continue
			}
			p.startTag(tok)
		case xhtml.EndTagToken:
			p.endTag(z.Token().Data)
		case xhtml.TextToken:
			p.text(z.Token().Data)
		case xhtml.CommentToken, xhtml.DoctypeToken:
			// Dropped entirely.
		}
	}
}

// skipRawContent discards tokens until the matching end tag. The
// tokenizer emits raw-text element content as a single text token, so
// this consumes at most the content and its end tag.
func (p *treeBuilder) skipRawContent(z *xhtml.Tokenizer, tag string) {
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return
		case xhtml.EndTagToken:
			if tok := z.Token(); tok.Data == tag {
				return
			}
		}
	}
}

func (p *treeBuilder) startTag(tok xhtml.Token) {
	tag := tok.Data
	attrs := convertAttrs(tok.Attr)

	switch tag {
	case "html":
		for _, a := range attrs {
			p.root.SetAttr(a.Key, a.Value)
		}
		return
	case "head":
		p.ensureHead()
		p.push(p.head)
		return
	case "body":
		p.ensureBody()
		for _, a := range attrs {
			p.body.SetAttr(a.Key, a.Value)
		}
		p.push(p.body)
		return
	}

	// Metadata elements seen before any body content go into the head.
	if headTags[tag] && p.body == nil && p.top() == p.root {
		p.ensureHead()
		el := NewElement(tag, attrs...)
		p.head.AppendChild(el)
		if !voidTags[tag] {
			p.push(el)
		}
		return
	}

	target := p.contentTarget()
	el := NewElement(tag, attrs...)
	target.AppendChild(el)
	if !voidTags[tag] && tok.Type != xhtml.SelfClosingTagToken {
		p.push(el)
	}
}

// endTag auto-closes intervening unclosed elements by walking up the
// open stack to the nearest matching tag; with no match the end tag is
// silently ignored.
func (p *treeBuilder) endTag(tag string) {
	for i := len(p.stack) - 1; i >= 1; i-- {
		if p.stack[i].Tag == tag {
			p.stack = p.stack[:i]
			return
		}
	}
}

func (p *treeBuilder) text(data string) {
	target := p.top()

	// Style content is preserved verbatim for later stylesheet
	// extraction; everything else is whitespace-collapsed.
	if target.Type == ElementNode && target.Tag == "style" {
		if trimmed := strings.TrimSpace(data); trimmed != "" {
			target.AppendChild(NewText(trimmed))
		}
		return
	}

	if strings.TrimSpace(data) == "" {
		return
	}

	// Text directly under the root is body content and triggers body
	// synthesis; text inside the head (e.g. a title) stays put.
	if target == p.root {
		target = p.contentTarget()
	}

	appendText(target, collapseWhitespace(data))
}

// contentTarget returns the current insertion point for body content,
// synthesizing the body the first time non-head content appears.
func (p *treeBuilder) contentTarget() *Node {
	top := p.top()
	if top != p.root && top != p.head {
		return top
	}
	p.ensureBody()
	if top == p.root {
		// Subsequent siblings belong to the body as well.
		p.push(p.body)
	}
	return p.body
}

func (p *treeBuilder) ensureHead() {
	if p.head == nil {
		p.head = NewElement("head")
		p.root.AppendChild(p.head)
	}
}

func (p *treeBuilder) ensureBody() {
	if p.body == nil {
		p.body = NewElement("body")
		p.root.AppendChild(p.body)
	}
}

func (p *treeBuilder) push(n *Node) {
	p.stack = append(p.stack, n)
}

func (p *treeBuilder) top() *Node {
	return p.stack[len(p.stack)-1]
}

// appendText merges adjacent text runs into a single node.
func appendText(parent *Node, text string) {
	if n := len(parent.Children); n > 0 {
		if last := parent.Children[n-1]; last.Type == TextNode {
			if strings.HasSuffix(last.Text, " ") && strings.HasPrefix(text, " ") {
				text = text[1:]
			}
			last.Text += text
			return
		}
	}
	parent.AppendChild(NewText(text))
}

// collapseWhitespace reduces every run of whitespace to a single
// space, preserving whether the text started or ended with whitespace.
func collapseWhitespace(s string) string {
	out := strings.Join(strings.Fields(s), " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

func convertAttrs(attrs []xhtml.Attribute) []Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = Attribute{Key: a.Key, Value: a.Val}
	}
	return out
}
