package extract

import (
	"errors"
	"testing"
)

func TestPlain_TextTypes(t *testing.T) {
	p := NewPlain()
	for _, mime := range []string{"text/plain", "text/markdown; charset=utf-8", "application/json", ""} {
		got, err := p.Extract([]byte("hello world"), mime)
		if err != nil {
			t.Fatalf("%s: %v", mime, err)
		}
		if got != "hello world" {
			t.Fatalf("%s: got %q", mime, got)
		}
	}
}

func TestPlain_UnsupportedType(t *testing.T) {
	p := NewPlain()
	_, err := p.Extract([]byte("x"), "application/pdf")
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %v", err)
	}
	if f.MimeType != "application/pdf" {
		t.Fatalf("mime = %q", f.MimeType)
	}
}

func TestPlain_InvalidUTF8(t *testing.T) {
	p := NewPlain()
	_, err := p.Extract([]byte{0xff, 0xfe, 0xfd}, "text/plain")
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %v", err)
	}
}
