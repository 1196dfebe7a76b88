package logql

import (
	"regexp"
	"strings"
)

var (
	valueInsertRe = regexp.MustCompile(`(\{[^}]*?\w+\s*=~?\s*")([^"]*)$`)
	labelInsertRe = regexp.MustCompile(`(\{[^}]*?(?:,\s*)?)(\w*)$`)
)

// ApplySuggestion splices s into text at the rune cursor by replacing the
// partial token left of the cursor. Text right of the cursor is kept as is.
// When the expected partial token is not there, text and cursor are
// returned unchanged.
func ApplySuggestion(text string, cursor int, s Suggestion) (string, int) {
	at := RuneToByteOffset(text, cursor)
	before, after := text[:at], text[at:]

	var prefix string
	switch s.Kind {
	case KindLabelValue:
		loc := valueInsertRe.FindStringSubmatchIndex(before)
		if loc == nil {
			return text, cursor
		}
		prefix = before[:loc[3]] + s.Value + `"`
	case KindLabel:
		loc := labelInsertRe.FindStringSubmatchIndex(before)
		if loc == nil {
			return text, cursor
		}
		prefix = before[:loc[3]] + s.Value + `="`
	case KindPipeOperator:
		loc := pipeTailRe.FindStringIndex(before)
		if loc == nil {
			return text, cursor
		}
		prefix = before[:loc[0]] + " " + s.Value
	default:
		return text, cursor
	}

	newCursor := ByteToRuneOffset(prefix, len(prefix))
	if s.Kind == KindPipeOperator && strings.HasSuffix(s.Value, `""`) {
		newCursor--
	}
	return prefix + after, newCursor
}
