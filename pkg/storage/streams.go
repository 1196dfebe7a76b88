// Package storage keeps an in-memory index of log stream label sets. It
// answers label lookups offline, from fixture files, the same way a Loki
// endpoint does.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/promql/parser"
	"gopkg.in/yaml.v3"
)

// SampleStreams is a small fixture used for demos and tests.
const SampleStreams = `
streams:
  - {namespace: prod, app: api, pod: api-7d9f, level: info, service_name: api}
  - {namespace: prod, app: api, pod: api-7d9f, level: error, service_name: api}
  - {namespace: prod, app: web, pod: web-5c2a, level: info, service_name: web}
  - {namespace: staging, app: api-canary, pod: api-canary-0, level: debug, service_name: api}
  - {namespace: pp-dev, app: worker, container: worker, level: warn}
`

// StreamStore is a LabelSource over a fixed set of streams. It is safe for
// concurrent use.
type StreamStore struct {
	mu      sync.RWMutex
	streams map[string]labels.Labels // keyed by the label set's string form
}

func NewStreamStore() *StreamStore {
	return &StreamStore{streams: make(map[string]labels.Labels)}
}

// Add records one stream. Empty label sets are ignored and duplicates are
// merged. The synthetic __name__ label is dropped.
func (s *StreamStore) Add(lbls map[string]string) {
	m := make(map[string]string, len(lbls))
	for k, v := range lbls {
		if k == model.MetricNameLabel || v == "" {
			continue
		}
		m[k] = v
	}
	if len(m) == 0 {
		return
	}
	ls := labels.FromMap(m)
	s.mu.Lock()
	s.streams[ls.String()] = ls
	s.mu.Unlock()
}

// Len returns the number of distinct streams.
func (s *StreamStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams)
}

// LoadFile loads streams from path. Files ending in .yaml or .yml hold a
// "streams" list of label maps; anything else is read as Prometheus text
// exposition, one stream per series.
func (s *StreamStore) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = s.LoadYAML(f)
	default:
		err = s.LoadExposition(f)
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

type streamsFile struct {
	Streams []map[string]string `yaml:"streams"`
}

// LoadYAML loads a document of the form:
//
//	streams:
//	  - {app: api, namespace: prod}
func (s *StreamStore) LoadYAML(r io.Reader) error {
	var doc streamsFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return fmt.Errorf("failed to parse streams: %w", err)
	}
	for _, st := range doc.Streams {
		s.Add(st)
	}
	return nil
}

// LoadExposition loads the label sets of Prometheus text exposition data.
func (s *StreamStore) LoadExposition(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read metrics: %w", err)
	}
	p := expfmt.NewTextParser(model.UTF8Validation)
	families, err := p.TextToMetricFamilies(strings.NewReader(string(sanitizeDirectives(data))))
	if err != nil && len(families) == 0 {
		return fmt.Errorf("failed to parse metrics with Prometheus parser: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			lbls := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				lbls[lp.GetName()] = lp.GetValue()
			}
			s.Add(lbls)
		}
	}
	return nil
}

// Labels returns the sorted label names of streams matching query, or of
// all streams when query is empty.
func (s *StreamStore) Labels(_ context.Context, query string) ([]string, error) {
	matchers, err := parseSelector(query)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{})
	s.each(matchers, func(ls labels.Labels) {
		ls.Range(func(l labels.Label) { names[l.Name] = struct{}{} })
	})
	return sortedKeys(names), nil
}

// LabelValues returns the sorted values of label name across streams
// matching query.
func (s *StreamStore) LabelValues(_ context.Context, name, query string) ([]string, error) {
	matchers, err := parseSelector(query)
	if err != nil {
		return nil, err
	}
	values := make(map[string]struct{})
	s.each(matchers, func(ls labels.Labels) {
		if v := ls.Get(name); v != "" {
			values[v] = struct{}{}
		}
	})
	return sortedKeys(values), nil
}

func (s *StreamStore) each(matchers []*labels.Matcher, fn func(labels.Labels)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ls := range s.streams {
		if matches(ls, matchers) {
			fn(ls)
		}
	}
}

func parseSelector(query string) ([]*labels.Matcher, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	ms, err := parser.ParseMetricSelector(query)
	if err != nil {
		return nil, fmt.Errorf("invalid stream selector %q: %w", query, err)
	}
	return ms, nil
}

func matches(ls labels.Labels, matchers []*labels.Matcher) bool {
	for _, m := range matchers {
		if !m.Matches(ls.Get(m.Name)) {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sanitizeDirectives drops all but the last "# HELP" and "# TYPE" line per
// metric name; the Prometheus parser rejects duplicates.
func sanitizeDirectives(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	keep := make([]bool, len(lines))
	seen := make(map[string]bool)
	for i := len(lines) - 1; i >= 0; i-- {
		keep[i] = true
		line := strings.TrimSpace(lines[i])
		var kind string
		switch {
		case strings.HasPrefix(line, "# HELP "):
			kind = "help"
		case strings.HasPrefix(line, "# TYPE "):
			kind = "type"
		default:
			continue
		}
		fields := strings.Fields(line[len("# HELP "):])
		if len(fields) == 0 {
			continue
		}
		key := kind + " " + fields[0]
		if seen[key] {
			keep[i] = false
		}
		seen[key] = true
	}
	var b strings.Builder
	first := true
	for i, ok := range keep {
		if !ok {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		first = false
		b.WriteString(lines[i])
	}
	return []byte(b.String())
}
