// Package logql holds the text-level machinery of the LogQL query bar: the
// presentation tokenizer, the autocomplete target resolver, the insertion
// engine and the structural validity check used before submitting a query.
//
// None of it is a real LogQL parser. Every function works on raw, possibly
// incomplete text as the user types and is pure and total.
package logql

// TokenKind classifies a run of query text for highlighting.
type TokenKind int

const (
	PlainText TokenKind = iota
	Whitespace
	Brace
	StringLiteral
	Operator
	PipeKeyword
	LabelKey
	Comma
)

func (k TokenKind) String() string {
	switch k {
	case PlainText:
		return "text"
	case Whitespace:
		return "whitespace"
	case Brace:
		return "brace"
	case StringLiteral:
		return "string"
	case Operator:
		return "operator"
	case PipeKeyword:
		return "pipe-keyword"
	case LabelKey:
		return "label-key"
	case Comma:
		return "comma"
	default:
		return "unknown"
	}
}

// Token is a highlighted span of the input. Concatenating the Text of every
// token returned by Tokenize reproduces the input exactly.
type Token struct {
	Text string
	Kind TokenKind
}

// pipeKeywords are the parser/formatter stage names, matched case-insensitively.
var pipeKeywords = map[string]bool{
	"json":         true,
	"logfmt":       true,
	"regexp":       true,
	"pattern":      true,
	"unpack":       true,
	"line_format":  true,
	"label_format": true,
	"unwrap":       true,
	"decolorize":   true,
	"drop":         true,
	"keep":         true,
}

// twoCharOperators are checked before the single-character '=' and '|'.
var twoCharOperators = []string{"=~", "!=", "!~", "|=", "|~"}
