package repl

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"

	"github.com/jjo/logql-cli/pkg/logql"
)

func values(names ...string) []logql.Suggestion {
	out := make([]logql.Suggestion, 0, len(names))
	for _, n := range names {
		out = append(out, logql.Suggestion{Value: n, Kind: logql.KindLabelValue, Description: "app"})
	}
	return out
}

func TestFormatSuggestions(t *testing.T) {
	got := formatSuggestions(values("api", "web-frontend"), 1, 80, false)
	want := "  api           app\n" +
		"> web-frontend  app\n"
	assert.Equal(t, want, got)

	assert.Empty(t, formatSuggestions(nil, 0, 80, false))
	assert.NotContains(t, formatSuggestions(values("api"), -1, 80, false), ">")
}

func TestFormatSuggestions_Window(t *testing.T) {
	names := make([]string, 15)
	for i := range names {
		names[i] = fmt.Sprintf("v%02d", i)
	}
	out := formatSuggestions(values(names...), 12, 80, false)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	assert.Equal(t, "  ... 3 above", lines[0])
	assert.Equal(t, "  ... 2 more", lines[len(lines)-1])
	assert.Len(t, lines, maxVisibleSuggestions+2)
	assert.Contains(t, out, "> v12")
	assert.NotContains(t, out, "v02")
	assert.NotContains(t, out, "v13")
}

func TestFormatSuggestions_TruncatesToWidth(t *testing.T) {
	long := strings.Repeat("x", 60)
	out := formatSuggestions(values(long, "日本語の値"), 0, 30, false)
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		assert.LessOrEqual(t, runewidth.StringWidth(line), 29, line)
	}
}

func TestFormatSuggestions_Color(t *testing.T) {
	out := formatSuggestions(values("api", "web"), 0, 80, true)
	assert.Contains(t, out, ansiReverse+"> api  app"+ansiReset)
	assert.Contains(t, out, "  web  "+ansiDim+"app"+ansiReset)
}

func TestVisibleWindow(t *testing.T) {
	tests := []struct {
		n, selected int
		start, end  int
	}{
		{3, 0, 0, 3},
		{20, 0, 0, 10},
		{20, 9, 0, 10},
		{20, 10, 1, 11},
		{20, 19, 10, 20},
		{20, -1, 0, 10},
	}
	for _, tt := range tests {
		start, end := visibleWindow(tt.n, tt.selected)
		assert.Equal(t, tt.start, start, "n=%d selected=%d", tt.n, tt.selected)
		assert.Equal(t, tt.end, end, "n=%d selected=%d", tt.n, tt.selected)
	}
}

func TestHighlight_RoundTrips(t *testing.T) {
	q := `{app="api", level!="debug"} |= "err" | json | line_format "{{.msg}}"`
	painted := Highlight(q)
	assert.NotEqual(t, q, painted)
	assert.Equal(t, q, stripANSI(painted))

	assert.Contains(t, painted, tokenColors[logql.PipeKeyword]+"json"+ansiReset)
}

func TestQueryPainter(t *testing.T) {
	var p queryPainter
	assert.Equal(t, ".labels {a", string(p.Paint([]rune(".labels {a"), 0)))
	assert.Equal(t, `{a="b"}`, stripANSI(string(p.Paint([]rune(`{a="b"}`), 0))))
}

func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
