package logql

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuerySyntax is wrapped by every error returned from Validate.
var ErrInvalidQuerySyntax = errors.New("invalid query syntax")

// SyntaxError describes why a query failed the structural check.
type SyntaxError struct {
	Reason string
	// Offset is the byte offset of the offending character, or -1 when the
	// problem is not tied to a single position.
	Offset int
}

func (e *SyntaxError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s: %s at offset %d", ErrInvalidQuerySyntax, e.Reason, e.Offset)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidQuerySyntax, e.Reason)
}

func (e *SyntaxError) Unwrap() error { return ErrInvalidQuerySyntax }

// Balanced reports whether text has as many '{' as '}' and an even number of
// unescaped double quotes. It is a cheap structural check, not a parse:
// braces inside string literals are counted too.
func Balanced(text string) bool {
	opens, closes, quotes := counts(text)
	return opens == closes && quotes%2 == 0
}

// IsValidQuery reports whether text looks complete enough to submit.
func IsValidQuery(text string) bool {
	return Validate(text) == nil
}

// Validate returns a *SyntaxError when text is empty or fails the
// structural check.
func Validate(text string) error {
	if strings.TrimSpace(text) == "" {
		return &SyntaxError{Reason: "empty query", Offset: -1}
	}
	opens, closes, quotes := counts(text)
	if quotes%2 != 0 {
		return &SyntaxError{Reason: "unterminated string literal", Offset: lastUnescapedQuote(text)}
	}
	if opens != closes {
		return &SyntaxError{Reason: fmt.Sprintf("unbalanced braces (%d '{' vs %d '}')", opens, closes), Offset: -1}
	}
	return nil
}

func counts(text string) (opens, closes, quotes int) {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			opens++
		case '}':
			closes++
		case '"':
			if i == 0 || text[i-1] != '\\' {
				quotes++
			}
		}
	}
	return opens, closes, quotes
}

func lastUnescapedQuote(text string) int {
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '"' && (i == 0 || text[i-1] != '\\') {
			return i
		}
	}
	return -1
}
