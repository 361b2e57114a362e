package network

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Resolve resolves a reference against a base locator. Absolute
// references and scheme-carrying references (data:, mailto:) pass
// through untouched; relative references join onto the base.
func Resolve(base, ref string) (string, error) {
	if ref == "" {
		return base, nil
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "mailto:") {
		return ref, nil
	}
	if strings.HasPrefix(ref, "#") {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("invalid base URL: %w", err)
		}
		baseURL.Fragment = ref[1:]
		return baseURL.String(), nil
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid reference URL: %w", err)
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// Normalize canonicalizes a URL for use as a cache key: lowercased
// scheme and host, default ports stripped, query encoded in sorted
// order.
func Normalize(urlStr string) (string, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	} else if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	return u.String(), nil
}

// IsAbsolute reports whether the locator carries a scheme.
func IsAbsolute(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	return u.IsAbs()
}

// IsDataURL reports whether the locator is a data: URL.
func IsDataURL(urlStr string) bool {
	return strings.HasPrefix(strings.ToLower(urlStr), "data:")
}

// DataURL is a parsed data: URL.
type DataURL struct {
	MediaType string
	Base64    bool
	Data      []byte
}

// ParseDataURL parses data:[<mediatype>][;base64],<data>.
func ParseDataURL(urlStr string) (*DataURL, error) {
	if !IsDataURL(urlStr) {
		return nil, fmt.Errorf("not a data URL")
	}
	content := urlStr[5:]
	commaIdx := strings.Index(content, ",")
	if commaIdx == -1 {
		return nil, fmt.Errorf("invalid data URL: missing comma")
	}
	metadata := content[:commaIdx]
	data := content[commaIdx+1:]

	result := &DataURL{MediaType: "text/plain"}
	for i, part := range strings.Split(metadata, ";") {
		switch {
		case part == "base64":
			result.Base64 = true
		case i == 0 && part != "":
			result.MediaType = part
		}
	}

	if result.Base64 {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("decode base64 data: %w", err)
		}
		result.Data = decoded
		return result, nil
	}
	decoded, err := url.QueryUnescape(data)
	if err != nil {
		return nil, fmt.Errorf("unescape data: %w", err)
	}
	result.Data = []byte(decoded)
	return result, nil
}

// ParseContentType splits a Content-Type header into media type and
// charset.
func ParseContentType(contentType string) (mediaType string, charset string) {
	if contentType == "" {
		return "application/octet-stream", ""
	}
	parts := strings.Split(contentType, ";")
	mediaType = strings.TrimSpace(parts[0])
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToLower(part), "charset=") {
			charset = strings.ToLower(strings.Trim(part[8:], `"`))
			break
		}
	}
	return mediaType, charset
}

// IsImageContentType reports whether the content type names an image.
func IsImageContentType(contentType string) bool {
	mediaType, _ := ParseContentType(contentType)
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}

// IsHTMLContentType reports whether the content type names an HTML
// document.
func IsHTMLContentType(contentType string) bool {
	mediaType, _ := ParseContentType(contentType)
	mediaType = strings.ToLower(mediaType)
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// GuessContentType guesses a content type from a locator's file
// extension.
func GuessContentType(urlStr string) string {
	path := urlStr
	if u, err := url.Parse(urlStr); err == nil && u.Path != "" {
		path = u.Path
	}
	lastDot := strings.LastIndex(path, ".")
	if lastDot == -1 || lastDot == len(path)-1 {
		return "application/octet-stream"
	}
	switch strings.ToLower(path[lastDot+1:]) {
	case "html", "htm":
		return "text/html"
	case "css":
		return "text/css"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
