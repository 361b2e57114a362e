package network

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"http://example.com/a/b.html", "c.png", "http://example.com/a/c.png"},
		{"http://example.com/a/b.html", "/c.png", "http://example.com/c.png"},
		{"http://example.com/a/b.html", "../c.png", "http://example.com/c.png"},
		{"http://example.com/a/", "http://other.com/x", "http://other.com/x"},
		{"http://example.com/a", "", "http://example.com/a"},
		{"http://example.com/a", "#frag", "http://example.com/a#frag"},
		{"http://example.com/a", "data:image/png;base64,AAAA", "data:image/png;base64,AAAA"},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.base, tt.ref)
		if err != nil {
			t.Errorf("Resolve(%q, %q): %v", tt.base, tt.ref, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"HTTP://Example.COM/path", "http://example.com/path"},
		{"http://example.com:80/path", "http://example.com/path"},
		{"https://example.com:443/path", "https://example.com/path"},
		{"http://example.com/p?b=2&a=1", "http://example.com/p?a=1&b=2"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.input)
		if err != nil {
			t.Errorf("Normalize(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsAbsolute(t *testing.T) {
	if !IsAbsolute("http://example.com/x") {
		t.Error("http URL should be absolute")
	}
	if !IsAbsolute("data:text/plain,hi") {
		t.Error("data URL should be absolute")
	}
	if IsAbsolute("images/cat.png") {
		t.Error("relative path should not be absolute")
	}
}

func TestParseDataURLPlain(t *testing.T) {
	d, err := ParseDataURL("data:text/plain,hello%20world")
	if err != nil {
		t.Fatal(err)
	}
	if d.MediaType != "text/plain" {
		t.Errorf("media type = %q", d.MediaType)
	}
	if string(d.Data) != "hello world" {
		t.Errorf("data = %q", d.Data)
	}
	if d.Base64 {
		t.Error("should not be base64")
	}
}

func TestParseDataURLBase64(t *testing.T) {
	d, err := ParseDataURL("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatal(err)
	}
	if d.MediaType != "image/png" {
		t.Errorf("media type = %q", d.MediaType)
	}
	if !d.Base64 {
		t.Error("should be base64")
	}
	if string(d.Data) != "hello" {
		t.Errorf("data = %q", d.Data)
	}
}

func TestParseDataURLInvalid(t *testing.T) {
	if _, err := ParseDataURL("http://example.com"); err == nil {
		t.Error("non-data URL should fail")
	}
	if _, err := ParseDataURL("data:no-comma"); err == nil {
		t.Error("missing comma should fail")
	}
	if _, err := ParseDataURL("data:image/png;base64,!!!"); err == nil {
		t.Error("bad base64 should fail")
	}
}

func TestParseContentType(t *testing.T) {
	mt, cs := ParseContentType("text/html; charset=UTF-8")
	if mt != "text/html" || cs != "utf-8" {
		t.Errorf("got (%q, %q)", mt, cs)
	}
	mt, cs = ParseContentType("")
	if mt != "application/octet-stream" || cs != "" {
		t.Errorf("empty header got (%q, %q)", mt, cs)
	}
}

func TestContentTypePredicates(t *testing.T) {
	if !IsImageContentType("image/png") {
		t.Error("image/png should be an image type")
	}
	if IsImageContentType("text/html") {
		t.Error("text/html should not be an image type")
	}
	if !IsHTMLContentType("text/html; charset=utf-8") {
		t.Error("text/html should be HTML")
	}
}

func TestGuessContentType(t *testing.T) {
	tests := []struct{ input, want string }{
		{"http://x.com/a/cat.png", "image/png"},
		{"http://x.com/a/photo.JPEG", "image/jpeg"},
		{"http://x.com/page.html?q=1", "text/html"},
		{"http://x.com/noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := GuessContentType(tt.input); got != tt.want {
			t.Errorf("GuessContentType(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
