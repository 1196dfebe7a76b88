package repl

import (
	"strings"

	"github.com/jjo/logql-cli/pkg/logql"
)

const ansiReset = "\033[0m"

// tokenColors maps token kinds to ANSI SGR sequences. Kinds without an
// entry are printed as-is.
var tokenColors = map[logql.TokenKind]string{
	logql.Brace:         "\033[1;37m", // bold white
	logql.StringLiteral: "\033[32m",   // green
	logql.Operator:      "\033[33m",   // yellow
	logql.PipeKeyword:   "\033[1;35m", // bold magenta
	logql.LabelKey:      "\033[36m",   // cyan
	logql.Comma:         "\033[90m",   // grey
}

// Highlight returns text with ANSI colors per token. Stripping the escape
// sequences yields text unchanged.
func Highlight(text string) string {
	var b strings.Builder
	for _, tok := range logql.Tokenize(text) {
		color, ok := tokenColors[tok.Kind]
		if !ok {
			b.WriteString(tok.Text)
			continue
		}
		b.WriteString(color)
		b.WriteString(tok.Text)
		b.WriteString(ansiReset)
	}
	return b.String()
}

// queryPainter colors the readline buffer. Dot-commands are left alone.
type queryPainter struct{}

func (queryPainter) Paint(line []rune, _ int) []rune {
	s := string(line)
	if strings.HasPrefix(strings.TrimSpace(s), ".") {
		return line
	}
	return []rune(Highlight(s))
}
