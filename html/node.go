// Package html provides a tolerant HTML parser producing a simple node
// tree suitable for styling and layout. Tokenization and character
// reference decoding come from golang.org/x/net/html; tree construction
// and error recovery are implemented here.
package html

import (
	"fmt"
	"io"
	"strings"
)

// NodeType discriminates between the two kinds of tree nodes.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// Attribute is a single key/value attribute on an element. Attribute
// order is preserved as it appeared in the source.
type Attribute struct {
	Key   string
	Value string
}

// Node is a node in the document tree: either an element with a tag
// name, attributes and children, or a text leaf. Every non-root node
// has exactly one parent.
//
// The root produced by Parse is always a synthetic "html" element with
// a "body" child, synthesized if the source did not provide one.
type Node struct {
	Type       NodeType
	Tag        string // element tag name, lowercased; empty for text
	Text       string // text content; empty for elements
	Attributes []Attribute
	Children   []*Node
	Parent     *Node
}

// NewElement creates a detached element node.
func NewElement(tag string, attrs ...Attribute) *Node {
	return &Node{Type: ElementNode, Tag: tag, Attributes: attrs}
}

// NewText creates a detached text node.
func NewText(text string) *Node {
	return &Node{Type: TextNode, Text: text}
}

// AppendChild attaches c as the last child of n.
func (n *Node) AppendChild(c *Node) {
	c.Parent = n
	n.Children = append(n.Children, c)
}

// Attr returns the value of the named attribute, or "" if absent.
func (n *Node) Attr(key string) string {
	for _, a := range n.Attributes {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present.
func (n *Node) HasAttr(key string) bool {
	for _, a := range n.Attributes {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets an attribute value, appending it if not present.
func (n *Node) SetAttr(key, value string) {
	for i, a := range n.Attributes {
		if a.Key == key {
			n.Attributes[i].Value = value
			return
		}
	}
	n.Attributes = append(n.Attributes, Attribute{Key: key, Value: value})
}

// ID returns the element's id attribute.
func (n *Node) ID() string { return n.Attr("id") }

// Classes returns the element's class list.
func (n *Node) Classes() []string {
	return strings.Fields(n.Attr("class"))
}

// TextContent returns the concatenated text of the node and its
// descendants.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.collectText(&sb)
	return sb.String()
}

func (n *Node) collectText(sb *strings.Builder) {
	if n.Type == TextNode {
		sb.WriteString(n.Text)
		return
	}
	for _, c := range n.Children {
		c.collectText(sb)
	}
}

// Find returns the first descendant element (including n itself) with
// the given tag, in document order, or nil.
func (n *Node) Find(tag string) *Node {
	if n.Type == ElementNode && n.Tag == tag {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(tag); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits n and every descendant in document order.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

func (n *Node) String() string {
	if n.Type == TextNode {
		return fmt.Sprintf("Text(%q)", n.Text)
	}
	if len(n.Attributes) == 0 {
		return fmt.Sprintf("Element(%s)", n.Tag)
	}
	parts := make([]string, 0, len(n.Attributes))
	for _, a := range n.Attributes {
		parts = append(parts, fmt.Sprintf("%s=%q", a.Key, a.Value))
	}
	return fmt.Sprintf("Element(%s %s)", n.Tag, strings.Join(parts, " "))
}

// PrintTree writes an indented dump of the tree to w, for debugging.
func PrintTree(w io.Writer, n *Node) {
	printTree(w, n, 0)
}

func printTree(w io.Writer, n *Node, depth int) {
	fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), n)
	for _, c := range n.Children {
		printTree(w, c, depth+1)
	}
}
