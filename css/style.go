package css

import (
	"sort"
	"strconv"
	"strings"

	"perch/html"
)

// ComputedStyle is the final resolved property map for one node. It is
// produced once per cascade pass and never mutated afterwards;
// re-styling replaces it wholesale.
type ComputedStyle struct {
	properties map[string]string
	order      []string
}

// NewComputedStyle creates an empty computed style.
func NewComputedStyle() *ComputedStyle {
	return &ComputedStyle{properties: make(map[string]string)}
}

// Get returns the value of a property, or "" if unset.
func (cs *ComputedStyle) Get(name string) string {
	return cs.properties[name]
}

// GetDefault returns the value of a property, or def if unset.
func (cs *ComputedStyle) GetDefault(name, def string) string {
	if v, ok := cs.properties[name]; ok {
		return v
	}
	return def
}

// Set sets a property value.
func (cs *ComputedStyle) Set(name, value string) {
	if _, ok := cs.properties[name]; !ok {
		cs.order = append(cs.order, name)
	}
	cs.properties[name] = value
}

// Has reports whether the property has been set.
func (cs *ComputedStyle) Has(name string) bool {
	_, ok := cs.properties[name]
	return ok
}

// Properties returns property names in first-set order.
func (cs *ComputedStyle) Properties() []string {
	return cs.order
}

// GetPx returns a property as a float, stripping a trailing "px".
func (cs *ComputedStyle) GetPx(name string, def float64) float64 {
	v := cs.properties[name]
	if v == "" {
		return def
	}
	v = strings.TrimSuffix(v, "px")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// GetInt returns a property as an integer, stripping a trailing "px".
func (cs *ComputedStyle) GetInt(name string, def int) int {
	v := cs.properties[name]
	if v == "" {
		return def
	}
	v = strings.TrimSpace(strings.TrimSuffix(v, "px"))
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// defaultStyles is the static default-style table keyed by tag name.
// Tags absent from the table get no defaults at all.
var defaultStyles = map[string]map[string]string{
	"body": {"display": "block", "margin": "8px"},
	"div":  {"display": "block"},
	"p":    {"display": "block", "margin-top": "16px", "margin-bottom": "16px"},
	"h1": {
		"display": "block", "font-size": "32px", "font-weight": "bold",
		"margin-top": "20px", "margin-bottom": "20px",
	},
	"h2": {
		"display": "block", "font-size": "24px", "font-weight": "bold",
		"margin-top": "18px", "margin-bottom": "18px",
	},
	"h3": {
		"display": "block", "font-size": "20px", "font-weight": "bold",
		"margin-top": "16px", "margin-bottom": "16px",
	},
	"h4": {
		"display": "block", "font-size": "18px", "font-weight": "bold",
		"margin-top": "14px", "margin-bottom": "14px",
	},
	"h5": {
		"display": "block", "font-size": "16px", "font-weight": "bold",
		"margin-top": "12px", "margin-bottom": "12px",
	},
	"h6": {
		"display": "block", "font-size": "14px", "font-weight": "bold",
		"margin-top": "10px", "margin-bottom": "10px",
	},
	"ul": {
		"display": "block", "margin-top": "16px", "margin-bottom": "16px",
		"padding-left": "40px",
	},
	"ol": {
		"display": "block", "margin-top": "16px", "margin-bottom": "16px",
		"padding-left": "40px",
	},
	"li": {"display": "list-item"},
	"blockquote": {
		"display": "block", "margin-top": "16px", "margin-bottom": "16px",
		"margin-left": "40px", "margin-right": "40px",
	},
	"pre": {
		"display": "block", "font-family": "monospace",
		"margin-top": "16px", "margin-bottom": "16px",
	},
	"span":   {"display": "inline"},
	"a":      {"display": "inline", "color": "blue", "text-decoration": "underline"},
	"em":     {"display": "inline", "font-style": "italic"},
	"i":      {"display": "inline", "font-style": "italic"},
	"strong": {"display": "inline", "font-weight": "bold"},
	"b":      {"display": "inline", "font-weight": "bold"},
	"code":   {"display": "inline", "font-family": "monospace"},
}

// defaultStyleOrder fixes the application order of each tag's default
// declarations so computed property order is deterministic.
var defaultStyleOrder = []string{
	"display", "color", "font-size", "font-family", "font-style",
	"font-weight", "text-decoration", "margin", "margin-top",
	"margin-bottom", "margin-left", "margin-right", "padding-left",
}

// inheritedProperties copy down from the parent's final computed style.
var inheritedProperties = []string{
	"color",
	"font-family",
	"font-size",
	"font-style",
	"font-weight",
	"line-height",
	"text-align",
	"text-decoration",
}

// StyledNode pairs a tree node with its computed style. The styled
// tree mirrors the node tree; text nodes carry their parent's style.
type StyledNode struct {
	Node     *html.Node
	Style    *ComputedStyle
	Parent   *StyledNode
	Children []*StyledNode
}

// Find returns the first styled descendant (including n) whose node
// has the given tag, or nil.
func (n *StyledNode) Find(tag string) *StyledNode {
	if n.Node.Type == html.ElementNode && n.Node.Tag == tag {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(tag); found != nil {
			return found
		}
	}
	return nil
}

// StyleResolver computes styles for elements using the cascade:
// defaults, then inheritance, then stylesheet rules in ascending
// specificity, then inline declarations.
type StyleResolver struct {
	rules []Rule
}

// NewStyleResolver creates a resolver over the given stylesheet rules.
func NewStyleResolver(rules []Rule) *StyleResolver {
	return &StyleResolver{rules: rules}
}

// AddRules appends stylesheet rules after those already present.
func (sr *StyleResolver) AddRules(rules []Rule) {
	sr.rules = append(sr.rules, rules...)
}

// ResolveStyle computes the final style for one element.
//
// Inherited values are copied down before stylesheet rules apply, so a
// matching rule of any specificity on this element overrides an
// inherited value. This ordering is deliberate and load-bearing.
func (sr *StyleResolver) ResolveStyle(el *html.Node, parent *ComputedStyle) *ComputedStyle {
	style := NewComputedStyle()

	// 1. Tag defaults.
	if defs, ok := defaultStyles[el.Tag]; ok {
		for _, prop := range defaultStyleOrder {
			if v, ok := defs[prop]; ok {
				style.Set(prop, v)
			}
		}
	}

	// 2. Inheritance from the parent's final computed style.
	if parent != nil {
		for _, prop := range inheritedProperties {
			if v := parent.Get(prop); v != "" {
				style.Set(prop, v)
			}
		}
	}

	// 3. Matching stylesheet rules, lowest specificity first. The sort
	// is stable, so equal specificity falls back to declaration order
	// and later rules win.
	var matching []Rule
	for _, rule := range sr.rules {
		if rule.Selector.Matches(el) {
			matching = append(matching, rule)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Selector.Specificity().Compare(matching[j].Selector.Specificity()) < 0
	})
	for _, rule := range matching {
		for _, d := range rule.Declarations {
			style.Set(d.Property, d.Value)
		}
	}

	// 4. Inline declarations, unconditionally last.
	if inline := el.Attr("style"); inline != "" {
		for _, d := range ParseInline(inline) {
			style.Set(d.Property, d.Value)
		}
	}

	return style
}

// ResolveTree resolves styles for a whole tree in pre-order, so each
// child inherits from its parent's final computed style. parentStyle
// may be nil for the root.
func (sr *StyleResolver) ResolveTree(root *html.Node, parentStyle *ComputedStyle) *StyledNode {
	return sr.resolveNode(root, parentStyle, nil)
}

func (sr *StyleResolver) resolveNode(n *html.Node, parentStyle *ComputedStyle, parent *StyledNode) *StyledNode {
	styled := &StyledNode{Node: n, Parent: parent}

	if n.Type == html.ElementNode {
		styled.Style = sr.ResolveStyle(n, parentStyle)
	} else {
		// Text nodes take the parent's style as-is.
		styled.Style = parentStyle
		if styled.Style == nil {
			styled.Style = NewComputedStyle()
		}
	}

	for _, c := range n.Children {
		styled.Children = append(styled.Children, sr.resolveNode(c, styled.Style, styled))
	}
	return styled
}

// StyleDocument is the convenience entry point: it extracts <style>
// contents from the tree, parses them together with any extra
// stylesheet text, and resolves the whole tree.
func StyleDocument(root *html.Node, extraCSS string) *StyledNode {
	cssText := CollectStyleText(root)
	if extraCSS != "" {
		cssText = extraCSS + "\n" + cssText
	}
	resolver := NewStyleResolver(ParseStylesheet(cssText))
	return resolver.ResolveTree(root, nil)
}
