// Package complete turns a completion target into a ranked list of
// suggestions, fetching label names and values from a LabelSource and caching
// them per query context.
package complete

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/jjo/logql-cli/pkg/logql"
)

const (
	DefaultLimit         = 20
	DefaultLookupTimeout = 5 * time.Second
)

// DefaultLabels is offered for unscoped label-name completion when the
// global label list cannot be fetched.
var DefaultLabels = []string{
	"app", "container", "env", "filename", "host",
	"job", "level", "namespace", "pod", "service_name",
}

// LabelSource answers label lookups. An empty queryContext means unscoped.
type LabelSource interface {
	Labels(ctx context.Context, queryContext string) ([]string, error)
	LabelValues(ctx context.Context, name, queryContext string) ([]string, error)
}

// Option configures a Provider.
type Option func(*Provider)

// WithLimit caps the number of suggestions returned by Suggest.
func WithLimit(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithLookupTimeout bounds each remote lookup. Zero disables the bound.
func WithLookupTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

func WithLogger(l logr.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// WithRegisterer registers the provider's cache and lookup metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Provider) { p.reg = reg }
}

// Provider produces suggestions for a logql.Target.
//
// Remote results are cached for the provider's lifetime, keyed by label and
// query context, so a lookup scoped to one selector never answers another.
// Failed lookups are not cached.
type Provider struct {
	src     LabelSource
	limit   int
	timeout time.Duration
	log     logr.Logger
	reg     prometheus.Registerer
	metrics *metrics

	initOnce sync.Once
	group    singleflight.Group

	mu     sync.RWMutex
	global []string
	cache  map[string][]string
}

// New returns a Provider backed by src.
func New(src LabelSource, opts ...Option) *Provider {
	p := &Provider{
		src:     src,
		limit:   DefaultLimit,
		timeout: DefaultLookupTimeout,
		log:     logr.Discard(),
		cache:   make(map[string][]string),
	}
	for _, o := range opts {
		o(p)
	}
	p.metrics = newMetrics(p.reg)
	return p
}

// ValueCacheKey is the cache key for the values of label name within ctx.
func ValueCacheKey(name, queryContext string) string {
	if queryContext == "" {
		queryContext = "none"
	}
	return name + "::" + queryContext
}

// LabelCacheKey is the cache key for the label names within ctx.
func LabelCacheKey(queryContext string) string {
	if queryContext == "" {
		queryContext = "global"
	}
	return "labels::" + queryContext
}

// Init loads the global label list once. On failure the list falls back to
// DefaultLabels. Later calls return the list loaded by the first one.
func (p *Provider) Init(ctx context.Context) []string {
	p.initOnce.Do(func() {
		labels, err := p.lookup(context.WithoutCancel(ctx), lookupLabels, func(ctx context.Context) ([]string, error) {
			return p.src.Labels(ctx, "")
		})
		if err != nil {
			p.log.V(1).Info("global label lookup failed, using defaults", "error", err.Error())
			labels = DefaultLabels
		}
		labels = withoutName(labels)
		p.mu.Lock()
		p.global = labels
		p.mu.Unlock()
	})
	return p.GlobalLabels()
}

// GlobalLabels returns the unscoped label list loaded by Init.
func (p *Provider) GlobalLabels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.global...)
}

// Suggest returns at most the configured limit of suggestions for t. Remote
// failures degrade to fewer suggestions and are never returned.
func (p *Provider) Suggest(ctx context.Context, t logql.Target) []logql.Suggestion {
	switch t.Kind {
	case logql.TargetLabelValue:
		return p.suggestValues(ctx, t)
	case logql.TargetLabelName:
		return p.suggestLabels(ctx, t)
	case logql.TargetPipeOperator:
		return p.suggestPipeOperators(t)
	default:
		return nil
	}
}

func (p *Provider) suggestValues(ctx context.Context, t logql.Target) []logql.Suggestion {
	qctx := contextOf(t)
	values, ok := p.cached(ctx, lookupValues, ValueCacheKey(t.LabelName, qctx), func(ctx context.Context) ([]string, error) {
		return p.src.LabelValues(ctx, t.LabelName, qctx)
	})
	if !ok {
		return nil
	}
	var out []logql.Suggestion
	for _, v := range filter(values, t.Partial, nil, p.limit) {
		out = append(out, logql.Suggestion{
			Value:       v,
			Kind:        logql.KindLabelValue,
			Description: t.LabelName,
		})
	}
	return out
}

func (p *Provider) suggestLabels(ctx context.Context, t logql.Target) []logql.Suggestion {
	var labels []string
	if t.HasContext {
		scoped, ok := p.cached(ctx, lookupLabels, LabelCacheKey(t.QueryContext), func(ctx context.Context) ([]string, error) {
			l, err := p.src.Labels(ctx, t.QueryContext)
			return withoutName(l), err
		})
		if ok {
			labels = scoped
		}
	}
	if labels == nil {
		labels = p.Init(ctx)
	}

	used := make(map[string]bool, len(t.UsedLabels))
	for _, l := range t.UsedLabels {
		used[l] = true
	}
	var out []logql.Suggestion
	for _, l := range filter(labels, t.Partial, used, p.limit) {
		out = append(out, logql.Suggestion{Value: l, Kind: logql.KindLabel, Description: "label"})
	}
	return out
}

func (p *Provider) suggestPipeOperators(t logql.Target) []logql.Suggestion {
	needle := strings.ToLower(stripSpace(t.Partial))
	var out []logql.Suggestion
	for _, op := range logql.PipeOperators {
		if strings.Contains(strings.ToLower(stripSpace(op.Value)), needle) {
			out = append(out, op)
			if len(out) == p.limit {
				break
			}
		}
	}
	return out
}

// cached returns the list stored under key, fetching and storing it on a
// miss. Concurrent misses on the same key share one fetch. The fetch outlives
// a cancelled caller so a superseded request still warms the cache.
func (p *Provider) cached(ctx context.Context, kind, key string, fetch func(context.Context) ([]string, error)) ([]string, bool) {
	p.mu.RLock()
	v, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		p.metrics.cacheHit(kind)
		return v, true
	}
	p.metrics.cacheMiss(kind)

	ch := p.group.DoChan(key, func() (any, error) {
		vals, err := p.lookup(context.WithoutCancel(ctx), kind, fetch)
		if err != nil {
			return nil, err
		}
		if vals == nil {
			vals = []string{}
		}
		p.mu.Lock()
		p.cache[key] = vals
		p.mu.Unlock()
		return vals, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			p.log.V(1).Info("label lookup failed", "key", key, "error", res.Err.Error())
			return nil, false
		}
		return res.Val.([]string), true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *Provider) lookup(ctx context.Context, kind string, fetch func(context.Context) ([]string, error)) ([]string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	vals, err := fetch(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	p.metrics.observeLookup(kind, time.Since(start), err)
	return vals, err
}

// CacheKeys returns the cached keys in sorted order.
func (p *Provider) CacheKeys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	keys := make([]string, 0, len(p.cache))
	for k := range p.cache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CacheStats summarizes the provider caches.
type CacheStats struct {
	Entries      int
	Values       int
	GlobalLabels int
}

func (p *Provider) Stats() CacheStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := CacheStats{Entries: len(p.cache), GlobalLabels: len(p.global)}
	for _, v := range p.cache {
		s.Values += len(v)
	}
	return s
}

func contextOf(t logql.Target) string {
	if !t.HasContext {
		return ""
	}
	return t.QueryContext
}

// filter keeps values containing partial (case-insensitive), skipping
// excluded ones, in source order, up to limit.
func filter(values []string, partial string, exclude map[string]bool, limit int) []string {
	needle := strings.ToLower(partial)
	var out []string
	for _, v := range values {
		if exclude[v] || !strings.Contains(strings.ToLower(v), needle) {
			continue
		}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

func withoutName(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != "__name__" {
			out = append(out, l)
		}
	}
	return out
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
