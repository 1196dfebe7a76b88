package repl

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	dto "github.com/prometheus/client_model/go"

	"github.com/jjo/logql-cli/pkg/logql"
)

func (s *Session) handleAdhocLabels(ctx context.Context, selector string) {
	if s.source == nil {
		s.printf("No label source configured\n")
		return
	}
	names, err := s.source.Labels(ctx, selector)
	if err != nil {
		s.printf("Error listing labels: %v\n", err)
		return
	}
	s.printList("Labels", names)
}

func (s *Session) handleAdhocValues(ctx context.Context, args string) {
	name, selector, _ := strings.Cut(args, " ")
	name = strings.Trim(name, " \"'")
	if name == "" {
		s.printf("Usage: .values <label> [<selector>]\n")
		return
	}
	if s.source == nil {
		s.printf("No label source configured\n")
		return
	}
	values, err := s.source.LabelValues(ctx, name, strings.TrimSpace(selector))
	if err != nil {
		s.printf("Error listing values for %s: %v\n", name, err)
		return
	}
	s.printList(fmt.Sprintf("Values of %s", name), values)
}

func (s *Session) printList(title string, items []string) {
	if len(items) == 0 {
		s.printf("%s: none\n", title)
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d):\n", title, len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "  - %s\n", it)
	}
	s.printf("%s", b.String())
}

func (s *Session) handleAdhocTokens(query string) {
	if query == "" {
		s.printf("Usage: .tokens <query>\n")
		return
	}
	var b strings.Builder
	for i, tok := range logql.Tokenize(query) {
		fmt.Fprintf(&b, "  [%d] %-15s %q\n", i, tok.Kind, tok.Text)
	}
	s.printf("%s", b.String())
}

func (s *Session) handleAdhocComplete(ctx context.Context, query string) {
	if query == "" {
		s.printf("Usage: .complete <query>\n")
		return
	}
	target, suggestions, _, _ := s.ApplyAt(ctx, query, -1, -1)
	s.printf("Target: %s", target.Kind)
	if target.LabelName != "" {
		s.printf(" label=%s", target.LabelName)
	}
	if target.HasContext {
		s.printf(" context=%s", target.QueryContext)
	}
	s.printf(" partial=%q\n", target.Partial)
	if len(suggestions) == 0 {
		s.printf("No suggestions\n")
		return
	}
	s.printf("%s", formatSuggestions(suggestions, -1, terminalWidth(80), false))
}

func (s *Session) handleAdhocCache() {
	keys := s.provider.CacheKeys()
	global := s.provider.GlobalLabels()
	s.printf("Global labels (%d): %s\n", len(global), strings.Join(global, ", "))
	s.printList("Cached lookups", keys)
}

func (s *Session) handleAdhocStats() {
	st := s.provider.Stats()
	s.printf("Cache: %d lookups, %d values, %d global labels\n", st.Entries, st.Values, st.GlobalLabels)

	families, err := s.gatherer.Gather()
	if err != nil {
		s.printf("Error gathering metrics: %v\n", err)
		return
	}
	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "logql_cli_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			lines = append(lines, formatMetric(mf, m))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		s.printf("  %s\n", l)
	}
}

func formatMetric(mf *dto.MetricFamily, m *dto.Metric) string {
	pairs := make([]string, 0, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		pairs = append(pairs, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
	}
	series := mf.GetName() + "{" + strings.Join(pairs, ",") + "}"
	switch mf.GetType() {
	case dto.MetricType_COUNTER:
		return fmt.Sprintf("%s %g", series, m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		return fmt.Sprintf("%s %g", series, m.GetGauge().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("%s count=%d sum=%.3fs", series, h.GetSampleCount(), h.GetSampleSum())
	default:
		return series
	}
}

func (s *Session) handleAdhocLoad(path string) {
	path = strings.Trim(path, " \"'")
	if path == "" {
		s.printf("Usage: .load <file.yaml|file.prom>\n")
		return
	}
	if s.store == nil {
		s.printf(".load needs the local stream store (no --loki-url)\n")
		return
	}
	before := s.store.Len()
	if err := s.store.LoadFile(path); err != nil {
		s.printf("Error loading %s: %v\n", path, err)
		return
	}
	s.printf("Loaded %s: %d streams (%d new)\n", path, s.store.Len(), s.store.Len()-before)
}

func (s *Session) handleAdhocSource(ctx context.Context, path string) {
	path = strings.Trim(path, " \"'")
	if path == "" {
		s.printf("Usage: .source <file>\n")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		s.printf("Error opening %s: %v\n", path, err)
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ".source") {
			continue
		}
		if s.Execute(ctx, line) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.printf("Error reading %s: %v\n", path, err)
	}
}

// handleAdhocHistory prints the whole history, the last N entries, or the
// entries starting with a prefix (newest first).
func (s *Session) handleAdhocHistory(arg string) {
	history := s.History()
	if arg == "" {
		s.printHistory(history, 0)
		return
	}
	if n, err := strconv.Atoi(arg); err == nil && n > 0 {
		start := max(len(history)-n, 0)
		s.printHistory(history[start:], start)
		return
	}
	matches := BuildFilteredHistory(arg, history)
	if len(matches) == 0 {
		s.printf("No history entries start with %q\n", arg)
		return
	}
	for _, h := range matches {
		s.printf("  %s\n", h)
	}
}

func (s *Session) printHistory(entries []string, offset int) {
	if len(entries) == 0 {
		s.printf("History is empty\n")
		return
	}
	var b strings.Builder
	for i, h := range entries {
		fmt.Fprintf(&b, "%5d  %s\n", offset+i+1, h)
	}
	s.printf("%s", b.String())
}

// handleAdhocEdit opens the given query, or the newest history entry that
// is not a dot-command, in the editor and submits the result.
func (s *Session) handleAdhocEdit(ctx context.Context, initial string) {
	if initial == "" {
		history := s.History()
		for i := len(history) - 1; i >= 0; i-- {
			if !strings.HasPrefix(history[i], ".") {
				initial = history[i]
				break
			}
		}
	}
	edited, err := s.edit(initial)
	if err != nil {
		s.printf("Error editing query: %v\n", err)
		return
	}
	if edited == "" {
		s.printf("Empty query, nothing submitted\n")
		return
	}
	s.Execute(ctx, edited)
}
