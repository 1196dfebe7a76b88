package complete

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjo/logql-cli/pkg/logql"
)

type fakeSource struct {
	mu         sync.Mutex
	labels     map[string][]string // keyed by query context
	values     map[string][]string // keyed by ValueCacheKey
	err        error
	block      chan struct{}
	labelCalls []string
	valueCalls []string
}

func (f *fakeSource) Labels(ctx context.Context, q string) ([]string, error) {
	f.mu.Lock()
	f.labelCalls = append(f.labelCalls, q)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.labels[q], nil
}

func (f *fakeSource) LabelValues(ctx context.Context, name, q string) ([]string, error) {
	f.mu.Lock()
	f.valueCalls = append(f.valueCalls, ValueCacheKey(name, q))
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.values[ValueCacheKey(name, q)], nil
}

func (f *fakeSource) wait(ctx context.Context) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeSource) calls() (labels, values []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.labelCalls...), append([]string(nil), f.valueCalls...)
}

func values(s []logql.Suggestion) []string {
	var out []string
	for _, x := range s {
		out = append(out, x.Value)
	}
	return out
}

func TestSuggest_LabelValuesInSourceOrder(t *testing.T) {
	src := &fakeSource{values: map[string][]string{
		"namespace::none": {"pp-dev", "prod", "sandbox-pp-dev"},
	}}
	p := New(src)

	got := p.Suggest(context.Background(), logql.Resolve(`{namespace="pp-dev`))
	assert.Equal(t, []string{"pp-dev", "sandbox-pp-dev"}, values(got))
	for _, s := range got {
		assert.Equal(t, logql.KindLabelValue, s.Kind)
	}

	// Second request is served from cache, filtered differently.
	got = p.Suggest(context.Background(), logql.Resolve(`{namespace="PR`))
	assert.Equal(t, []string{"prod"}, values(got))
	_, vcalls := src.calls()
	assert.Equal(t, []string{"namespace::none"}, vcalls)
}

func TestSuggest_PartialMatchesBySubstring(t *testing.T) {
	src := &fakeSource{values: map[string][]string{
		"namespace::none": {"pp-development", "pp-staging"},
	}}
	p := New(src)

	got := p.Suggest(context.Background(), logql.Resolve(`{namespace="pp-dev`))
	assert.Equal(t, []string{"pp-development"}, values(got))
}

func TestSuggest_ContextScopedCaches(t *testing.T) {
	src := &fakeSource{values: map[string][]string{
		`app::{namespace="prod"}`:    {"api", "web"},
		`app::{namespace="staging"}`: {"api-canary"},
	}}
	p := New(src)
	ctx := context.Background()

	prod := p.Suggest(ctx, logql.Resolve(`{namespace="prod", app="`))
	staging := p.Suggest(ctx, logql.Resolve(`{namespace="staging", app="`))
	assert.Equal(t, []string{"api", "web"}, values(prod))
	assert.Equal(t, []string{"api-canary"}, values(staging))
	assert.Equal(t, []string{`app::{namespace="prod"}`, `app::{namespace="staging"}`}, p.CacheKeys())
}

func TestSuggest_LabelNames(t *testing.T) {
	src := &fakeSource{labels: map[string][]string{
		"":                   {"app", "namespace", "pod"},
		`{namespace="prod"}`: {"__name__", "app", "namespace", "pod", "container"},
	}}
	p := New(src)
	ctx := context.Background()

	assert.Equal(t, []string{"app", "namespace", "pod"}, p.Init(ctx))

	got := p.Suggest(ctx, logql.Resolve(`{`))
	assert.Equal(t, []string{"app", "namespace", "pod"}, values(got))

	got = p.Suggest(ctx, logql.Resolve(`{namespace="prod", `))
	assert.Equal(t, []string{"app", "pod", "container"}, values(got), "used labels and __name__ are excluded")

	got = p.Suggest(ctx, logql.Resolve(`{namespace="prod", P`))
	assert.Equal(t, []string{"app", "pod"}, values(got))

	lcalls, _ := src.calls()
	assert.Equal(t, []string{"", `{namespace="prod"}`}, lcalls)
}

func TestSuggest_LabelNamesLazyInit(t *testing.T) {
	src := &fakeSource{labels: map[string][]string{"": {"job"}}}
	p := New(src)
	got := p.Suggest(context.Background(), logql.Resolve(`{j`))
	assert.Equal(t, []string{"job"}, values(got))
}

func TestInit_FallsBackToDefaults(t *testing.T) {
	p := New(&fakeSource{err: errors.New("connection refused")})
	assert.Equal(t, DefaultLabels, p.Init(context.Background()))
}

func TestSuggest_Failures(t *testing.T) {
	src := &fakeSource{
		labels: map[string][]string{"": {"app", "job"}},
	}
	p := New(src)
	ctx := context.Background()
	p.Init(ctx)

	src.err = errors.New("boom")
	got := p.Suggest(ctx, logql.Resolve(`{namespace="prod", `))
	assert.Equal(t, []string{"app", "job"}, values(got), "scoped failure falls back to the global list")

	assert.Empty(t, p.Suggest(ctx, logql.Resolve(`{app="`)))
	assert.Empty(t, p.CacheKeys(), "failures are not cached")

	src.err = nil
	src.values = map[string][]string{"app::none": {"api"}}
	assert.Equal(t, []string{"api"}, values(p.Suggest(ctx, logql.Resolve(`{app="`))))
}

func TestSuggest_LookupTimeout(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	defer close(src.block)
	reg := prometheus.NewRegistry()
	p := New(src, WithLookupTimeout(20*time.Millisecond), WithRegisterer(reg))

	start := time.Now()
	got := p.Suggest(context.Background(), logql.Resolve(`{app="`))
	assert.Empty(t, got)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.lookupFailures.WithLabelValues(lookupValues)))
}

func TestSuggest_CallerCancelled(t *testing.T) {
	src := &fakeSource{block: make(chan struct{})}
	p := New(src)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, p.Suggest(ctx, logql.Resolve(`{app="`)))

	// The shared fetch continues and warms the cache once the source answers.
	src.values = map[string][]string{"app::none": {"api"}}
	close(src.block)
	require.Eventually(t, func() bool { return len(p.CacheKeys()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSuggest_Limit(t *testing.T) {
	var many []string
	for i := 0; i < 50; i++ {
		many = append(many, fmt.Sprintf("pod-%02d", i))
	}
	src := &fakeSource{values: map[string][]string{"pod::none": many}}

	got := New(src).Suggest(context.Background(), logql.Resolve(`{pod="`))
	require.Len(t, got, DefaultLimit)
	assert.Equal(t, "pod-00", got[0].Value)
	assert.Equal(t, "pod-19", got[19].Value)

	got = New(src, WithLimit(3)).Suggest(context.Background(), logql.Resolve(`{pod="`))
	assert.Len(t, got, 3)
}

func TestSuggest_PipeOperators(t *testing.T) {
	p := New(&fakeSource{})
	ctx := context.Background()

	tests := []struct {
		text string
		want []string
	}{
		{`{app="x"} `, nil}, // nil means all templates
		{`{app="x"} | js`, []string{"| json"}},
		{`{app="x"} | line`, []string{`| line_format ""`}},
		{`{app="x"} |~`, []string{`|~ ""`}},
		{`{app="x"} !`, []string{`!= ""`, `!~ ""`}},
		{`{app="x"} | nomatch`, []string{}},
	}
	for _, tt := range tests {
		got := values(p.Suggest(ctx, logql.Resolve(tt.text)))
		if tt.want == nil {
			assert.Len(t, got, len(logql.PipeOperators), tt.text)
			continue
		}
		if len(tt.want) == 0 {
			assert.Empty(t, got, tt.text)
			continue
		}
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestSuggest_NoneTarget(t *testing.T) {
	src := &fakeSource{}
	assert.Nil(t, New(src).Suggest(context.Background(), logql.Target{Kind: logql.TargetNone}))
	lcalls, vcalls := src.calls()
	assert.Empty(t, lcalls)
	assert.Empty(t, vcalls)
}

func TestSuggest_ConcurrentMissesShareOneLookup(t *testing.T) {
	src := &fakeSource{
		block:  make(chan struct{}),
		values: map[string][]string{"app::none": {"api"}},
	}
	p := New(src)

	var wg sync.WaitGroup
	results := make([][]logql.Suggestion, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = p.Suggest(context.Background(), logql.Resolve(`{app="`))
		}(i)
	}
	require.Eventually(t, func() bool {
		_, v := src.calls()
		return len(v) == 1
	}, time.Second, time.Millisecond)
	close(src.block)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, []string{"api"}, values(r))
	}
	_, vcalls := src.calls()
	assert.Len(t, vcalls, 1)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "app::none", ValueCacheKey("app", ""))
	assert.Equal(t, `app::{env="x"}`, ValueCacheKey("app", `{env="x"}`))
	assert.Equal(t, "labels::global", LabelCacheKey(""))
	assert.Equal(t, `labels::{env="x"}`, LabelCacheKey(`{env="x"}`))
}

func TestStats(t *testing.T) {
	src := &fakeSource{
		labels: map[string][]string{"": {"app"}},
		values: map[string][]string{"app::none": {"a", "b"}},
	}
	reg := prometheus.NewRegistry()
	p := New(src, WithRegisterer(reg))
	ctx := context.Background()
	p.Init(ctx)
	p.Suggest(ctx, logql.Resolve(`{app="`))
	p.Suggest(ctx, logql.Resolve(`{app="`))

	assert.Equal(t, CacheStats{Entries: 1, Values: 2, GlobalLabels: 1}, p.Stats())
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.cacheRequests.WithLabelValues(lookupValues, "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.cacheRequests.WithLabelValues(lookupValues, "miss")))

	// A second provider on the same registry shares the collectors.
	p2 := New(src, WithRegisterer(reg))
	assert.Same(t, p.metrics.cacheRequests, p2.metrics.cacheRequests)
}
