package valueobjects

import (
	"strings"
	"unicode/utf8"

	pkgerrors "path-backend/pkg/errors"
)

// Body is the text of a memo draft or revision. The empty string is a valid
// body meaning "intentionally blank".
type Body struct {
	text string
}

// NewBody wraps text without validation
func NewBody(text string) Body {
	return Body{text: text}
}

// NewDraftBody validates text submitted by an editor: it must be empty or
// trim to at least minLength characters.
func NewDraftBody(text string, minLength int) (Body, error) {
	if text != "" && utf8.RuneCountInString(strings.TrimSpace(text)) < minLength {
		return Body{}, pkgerrors.MinLength("body", minLength)
	}
	return Body{text: text}, nil
}

// String returns the raw text
func (b Body) String() string {
	return b.text
}

// Bytes returns the raw text as bytes
func (b Body) Bytes() []byte {
	return []byte(b.text)
}

// Len returns the length in characters
func (b Body) Len() int {
	return utf8.RuneCountInString(b.text)
}

// IsBlank reports whether the body has no content once trimmed
func (b Body) IsBlank() bool {
	return strings.TrimSpace(b.text) == ""
}

// Equals compares byte for byte
func (b Body) Equals(other Body) bool {
	return b.text == other.text
}

// LosesMostOf reports whether replacing b with next drops more than ratio of
// b's characters, counting only bodies longer than minLength.
func (b Body) LosesMostOf(next Body, minLength int, ratio float64) bool {
	oldLen := b.Len()
	if oldLen <= minLength {
		return false
	}
	removed := oldLen - next.Len()
	if removed <= 0 {
		return false
	}
	return float64(removed)/float64(oldLen) > ratio
}
