package repl

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jjo/logql-cli/pkg/logql"
)

// maxVisibleSuggestions bounds the rendered list; the window follows the
// highlighted entry.
const maxVisibleSuggestions = 10

const (
	ansiReverse = "\033[7m"
	ansiDim     = "\033[2m"
)

// formatSuggestions renders a suggestion list one entry per line, marking
// the entry at selected. A negative selected marks nothing. Lines are
// truncated to width display columns.
func formatSuggestions(list []logql.Suggestion, selected, width int, color bool) string {
	if len(list) == 0 {
		return ""
	}
	if width < 20 {
		width = 20
	}

	start, end := visibleWindow(len(list), selected)
	col := 0
	for _, s := range list[start:end] {
		col = max(col, runewidth.StringWidth(s.Value))
	}
	col = min(col, width/2)

	var b strings.Builder
	if start > 0 {
		fmt.Fprintf(&b, "  ... %d above\n", start)
	}
	for i := start; i < end; i++ {
		s := list[i]
		marker := "  "
		if i == selected {
			marker = "> "
		}
		head := marker + runewidth.FillRight(runewidth.Truncate(s.Value, col, "~"), col) + "  "
		line := runewidth.Truncate(head+s.Description, width-1, "~")
		switch {
		case !color:
			b.WriteString(line)
		case i == selected:
			b.WriteString(ansiReverse + line + ansiReset)
		case strings.HasPrefix(line, head) && len(line) > len(head):
			b.WriteString(head + ansiDim + line[len(head):] + ansiReset)
		default:
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	if end < len(list) {
		fmt.Fprintf(&b, "  ... %d more\n", len(list)-end)
	}
	return b.String()
}

// visibleWindow returns the [start, end) slice of a list of n entries that
// keeps selected in view.
func visibleWindow(n, selected int) (int, int) {
	if n <= maxVisibleSuggestions {
		return 0, n
	}
	start := 0
	if selected >= maxVisibleSuggestions {
		start = selected - maxVisibleSuggestions + 1
	}
	return start, start + maxVisibleSuggestions
}
