package logql

import (
	"regexp"
	"strings"
)

// TargetKind is the completion context at the cursor.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetLabelValue
	TargetLabelName
	TargetPipeOperator
)

func (k TargetKind) String() string {
	switch k {
	case TargetLabelValue:
		return "label-value"
	case TargetLabelName:
		return "label-name"
	case TargetPipeOperator:
		return "pipe-operator"
	default:
		return "none"
	}
}

// Target describes what is being completed at the cursor.
//
// QueryContext is the stream selector typed so far, wrapped in braces, used
// to scope remote lookups. It is only meaningful when HasContext is set.
type Target struct {
	Kind         TargetKind
	LabelName    string   // label-value only
	Partial      string   // lower-cased for label targets, verbatim for pipe operators
	QueryContext string   // "{...}" when HasContext
	HasContext   bool
	RawContext   string   // selector content before the token being typed
	UsedLabels   []string // label-name only
	ReplaceMatch string   // pipe-operator only
}

var (
	// An open selector whose last matcher is key=" or key=~" with no closing quote.
	labelValueRe = regexp.MustCompile(`\{([^}]*?)(\w+)\s*=~?\s*"([^"]*)$`)
	// An open selector, content up to the cursor.
	openSelectorRe = regexp.MustCompile(`\{([^}]*)$`)
	bareTailRe     = regexp.MustCompile(`^\s*(\w*)$`)
	usedLabelRe    = regexp.MustCompile(`(\w+)\s*[=!]`)
	// Whitespace, optional filter punctuation and a partial stage name.
	pipeTailRe = regexp.MustCompile(`(\s+(?:[|!=~]*\s*)?[a-z_]*)$`)
)

type resolveRule func(textToCursor string) (Target, bool)

// Order matters: the label-value pattern is a superset of an open selector,
// and pipe operators only apply once the selector is closed.
var resolveRules = []resolveRule{
	resolveLabelValue,
	resolveLabelName,
	resolvePipeOperator,
}

// Resolve determines the completion target for the text left of the cursor.
// It is a fixed-priority set of pattern heuristics, not a grammar.
func Resolve(textToCursor string) Target {
	for _, rule := range resolveRules {
		if t, ok := rule(textToCursor); ok {
			return t
		}
	}
	return Target{Kind: TargetNone}
}

// ResolveAt resolves the target for text with the cursor at a rune offset.
func ResolveAt(text string, cursor int) Target {
	return Resolve(text[:RuneToByteOffset(text, cursor)])
}

func resolveLabelValue(text string) (Target, bool) {
	m := labelValueRe.FindStringSubmatch(text)
	if m == nil {
		return Target{}, false
	}
	t := Target{
		Kind:       TargetLabelValue,
		LabelName:  m[2],
		Partial:    strings.ToLower(m[3]),
		RawContext: trimContext(m[1]),
	}
	t.QueryContext, t.HasContext = wrapContext(t.RawContext)
	return t, true
}

func resolveLabelName(text string) (Target, bool) {
	m := openSelectorRe.FindStringSubmatch(text)
	if m == nil {
		return Target{}, false
	}
	content := m[1]
	tail := content[strings.LastIndex(content, ",")+1:]
	tm := bareTailRe.FindStringSubmatch(tail)
	if tm == nil {
		return Target{}, false
	}
	word := tm[1]
	t := Target{
		Kind:       TargetLabelName,
		Partial:    strings.ToLower(word),
		RawContext: trimContext(content[:len(content)-len(word)]),
		UsedLabels: usedLabels(content),
	}
	t.QueryContext, t.HasContext = wrapContext(t.RawContext)
	return t, true
}

func resolvePipeOperator(text string) (Target, bool) {
	if !Balanced(text) {
		return Target{}, false
	}
	m := pipeTailRe.FindStringSubmatch(text)
	if m == nil {
		return Target{}, false
	}
	return Target{Kind: TargetPipeOperator, Partial: m[1], ReplaceMatch: m[1]}, true
}

func usedLabels(content string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range usedLabelRe.FindAllStringSubmatch(content, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func trimContext(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ",")
	return strings.TrimSpace(s)
}

func wrapContext(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	return "{" + raw + "}", true
}
