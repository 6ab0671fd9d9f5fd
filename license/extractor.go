package license

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// TextExtractor turns a submitted document into text. OCR and PDF parsing
// live behind this interface; the engine never reads raw bytes itself.
type TextExtractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

// ErrNoText is returned when a document yields no usable text.
var ErrNoText = errors.New("document has no extractable text")

// PlainTextExtractor accepts documents whose content already is UTF-8 text,
// such as text produced by an upstream OCR step.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(_ context.Context, doc Document) (string, error) {
	if !utf8.Valid(doc.Content) {
		return "", ErrNoText
	}
	text := strings.TrimSpace(string(doc.Content))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
