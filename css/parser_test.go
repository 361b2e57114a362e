package css

import (
	"testing"

	"perch/html"
)

func TestParseStylesheetBasic(t *testing.T) {
	rules := ParseStylesheet(`p { color: red; font-size: 20px; }`)
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	r := rules[0]
	if r.Selector.Tag != "p" {
		t.Errorf("selector tag = %q, want p", r.Selector.Tag)
	}
	if got := r.Get("color"); got != "red" {
		t.Errorf("color = %q, want red", got)
	}
	if got := r.Get("font-size"); got != "20px" {
		t.Errorf("font-size = %q, want 20px", got)
	}
}

func TestParseStylesheetMultipleRules(t *testing.T) {
	rules := ParseStylesheet(`
		h1 { font-size: 40px }
		.note { color: gray; }
		#main { margin: 0; }
	`)
	if len(rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(rules))
	}
	if rules[0].Selector.Tag != "h1" {
		t.Errorf("rule 0 tag = %q", rules[0].Selector.Tag)
	}
	if len(rules[1].Selector.Classes) != 1 || rules[1].Selector.Classes[0] != "note" {
		t.Errorf("rule 1 classes = %v", rules[1].Selector.Classes)
	}
	if rules[2].Selector.ID != "main" {
		t.Errorf("rule 2 id = %q", rules[2].Selector.ID)
	}
}

func TestParseStylesheetCommaSelectors(t *testing.T) {
	rules := ParseStylesheet(`h1, h2, .big { font-weight: bold }`)
	if len(rules) != 3 {
		t.Fatalf("got %d rules, want 3", len(rules))
	}
	for i, r := range rules {
		if got := r.Get("font-weight"); got != "bold" {
			t.Errorf("rule %d font-weight = %q, want bold", i, got)
		}
	}
}

func TestParseStylesheetComments(t *testing.T) {
	rules := ParseStylesheet(`
		/* heading styles */
		h1 { color: navy }
		/* trailing comment with a brace } inside */
	`)
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	if got := rules[0].Get("color"); got != "navy" {
		t.Errorf("color = %q, want navy", got)
	}
}

func TestParseStylesheetMalformed(t *testing.T) {
	// Declarations without a colon are dropped; the rest of the
	// block still parses. A truncated final block is closed at EOF.
	rules := ParseStylesheet(`p { color red; font-size: 14px } div { margin: 4px`)
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if got := rules[0].Get("color"); got != "" {
		t.Errorf("color = %q, want empty", got)
	}
	if got := rules[0].Get("font-size"); got != "14px" {
		t.Errorf("font-size = %q, want 14px", got)
	}
	if got := rules[1].Get("margin"); got != "4px" {
		t.Errorf("margin = %q, want 4px", got)
	}
}

func TestParseStylesheetEmpty(t *testing.T) {
	if rules := ParseStylesheet(""); len(rules) != 0 {
		t.Errorf("got %d rules, want 0", len(rules))
	}
	if rules := ParseStylesheet("   \n\t  "); len(rules) != 0 {
		t.Errorf("got %d rules from whitespace, want 0", len(rules))
	}
}

func TestParseInline(t *testing.T) {
	decls := ParseInline("color: green; font-size: 18px;")
	if len(decls) != 2 {
		t.Fatalf("got %d declarations, want 2", len(decls))
	}
	if decls[0].Property != "color" || decls[0].Value != "green" {
		t.Errorf("decl 0 = %+v", decls[0])
	}
	if decls[1].Property != "font-size" || decls[1].Value != "18px" {
		t.Errorf("decl 1 = %+v", decls[1])
	}
}

func TestCollectStyleText(t *testing.T) {
	doc := html.Parse(`<html><head><style>p { color: red }</style></head>
		<body><style>div { margin: 0 }</style><p>hi</p></body></html>`)
	text := CollectStyleText(doc)
	rules := ParseStylesheet(text)
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
}
