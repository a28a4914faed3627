// Package extract defines the text-extraction seam of the ingestion
// pipeline. Format-specific parsing (PDF, DOCX) lives behind the Extractor
// interface; this package ships only the plain-text implementation and the
// failure type the pipeline maps to a failed ingestion.
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Extractor converts raw upload bytes into plain text.
type Extractor interface {
	// Extract returns the document's text, or a *Failure when the input
	// is unsupported or corrupt.
	Extract(data []byte, mimeType string) (string, error)
}

// Failure describes an extraction error for a given mime type.
type Failure struct {
	MimeType string
	Err      error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("extract %s: %v", f.MimeType, f.Err)
}

// Unwrap returns the underlying parse error.
func (f *Failure) Unwrap() error { return f.Err }

// Plain handles text-like mime types by decoding bytes as UTF-8. Anything
// that is not valid UTF-8 is rejected rather than silently mangled.
type Plain struct{}

// NewPlain returns the plain-text extractor.
func NewPlain() *Plain { return &Plain{} }

// Extract implements Extractor for text/* and common text-bearing types.
func (p *Plain) Extract(data []byte, mimeType string) (string, error) {
	base := mimeType
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(strings.ToLower(base))

	switch {
	case strings.HasPrefix(base, "text/"),
		base == "application/json",
		base == "application/xml",
		base == "application/octet-stream",
		base == "":
		if !utf8.Valid(data) {
			return "", &Failure{MimeType: mimeType, Err: errNotUTF8}
		}
		return string(data), nil
	default:
		return "", &Failure{MimeType: mimeType, Err: errUnsupported}
	}
}

var (
	errNotUTF8     = fmt.Errorf("content is not valid UTF-8")
	errUnsupported = fmt.Errorf("unsupported mime type")
)
