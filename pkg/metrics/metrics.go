// Package metrics is a small dependency-free metrics registry that renders
// the Prometheus text exposition format. Counters, gauges, and histograms
// are created on first use; label combinations are baked into the metric
// name with WithLabels so each combination is its own series.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets suit request and run durations measured in seconds.
var DefaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Counter only goes up.
type Counter struct{ v atomic.Int64 }

func (c *Counter) Inc()         { c.v.Add(1) }
func (c *Counter) Add(n int64)  { c.v.Add(n) }
func (c *Counter) Value() int64 { return c.v.Load() }

// Gauge holds the latest observed value.
type Gauge struct{ v atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.v.Store(n) }
func (g *Gauge) Inc()         { g.v.Add(1) }
func (g *Gauge) Dec()         { g.v.Add(-1) }
func (g *Gauge) Value() int64 { return g.v.Load() }

// Histogram records a distribution over fixed upper-bound buckets.
type Histogram struct {
	mu      sync.Mutex
	bounds  []float64
	counts  []uint64
	sum     float64
	samples uint64
}

func newHistogram(bounds []float64) *Histogram {
	b := make([]float64, len(bounds))
	copy(b, bounds)
	sort.Float64s(b)
	return &Histogram{bounds: b, counts: make([]uint64, len(b))}
}

// Observe records one sample into its smallest covering bucket.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.samples++
	for i, b := range h.bounds {
		if v <= b {
			h.counts[i]++
			break
		}
	}
}

// Since observes the elapsed seconds since t.
func (h *Histogram) Since(t time.Time) { h.Observe(time.Since(t).Seconds()) }

func (h *Histogram) snapshot() (bounds []float64, counts []uint64, sum float64, samples uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts = make([]uint64, len(h.counts))
	copy(counts, h.counts)
	return h.bounds, counts, h.sum, h.samples
}

// Registry holds named metrics and renders them on demand.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	kind       map[string]string
	help       map[string]string
	order      []string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		kind:       make(map[string]string),
		help:       make(map[string]string),
	}
}

// WithLabels appends label pairs to a metric name, e.g.
// WithLabels("runs_total", "status", "ok") yields `runs_total{status="ok"}`.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

func baseName(name string) string {
	if i := strings.IndexByte(name, '{'); i >= 0 {
		return name[:i]
	}
	return name
}

// labelPart returns the label portion of a series name, comma-prefixed, for
// splicing into histogram bucket lines.
func labelPart(name string) string {
	i := strings.IndexByte(name, '{')
	if i < 0 || len(name[i+1:len(name)-1]) == 0 {
		return ""
	}
	return "," + name[i+1:len(name)-1]
}

func (r *Registry) register(name, kind, help string) {
	base := baseName(name)
	if _, seen := r.kind[base]; !seen {
		r.order = append(r.order, base)
	}
	r.kind[base] = kind
	if help != "" {
		r.help[base] = help
	}
}

// Counter returns the counter series, creating it on first use.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.register(name, "counter", help)
	return c
}

// Gauge returns the gauge series, creating it on first use.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.register(name, "gauge", help)
	return g
}

// Histogram returns the histogram series, creating it on first use with the
// given bucket bounds (DefaultBuckets when nil).
func (r *Registry) Histogram(name, help string, bounds []float64) *Histogram {
	if bounds == nil {
		bounds = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := newHistogram(bounds)
	r.histograms[name] = h
	r.register(name, "histogram", help)
	return h
}

// Render emits every registered metric in the text exposition format, in
// registration order with series sorted within each family.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, base := range r.order {
		if help, ok := r.help[base]; ok {
			fmt.Fprintf(&b, "# HELP %s %s\n", base, help)
		}
		kind := r.kind[base]
		fmt.Fprintf(&b, "# TYPE %s %s\n", base, kind)

		switch kind {
		case "counter":
			for _, name := range seriesOf(r.counters, base) {
				fmt.Fprintf(&b, "%s %d\n", name, r.counters[name].Value())
			}
		case "gauge":
			for _, name := range seriesOf(r.gauges, base) {
				fmt.Fprintf(&b, "%s %d\n", name, r.gauges[name].Value())
			}
		case "histogram":
			for _, name := range seriesOf(r.histograms, base) {
				bounds, counts, sum, samples := r.histograms[name].snapshot()
				labels := labelPart(name)
				var cum uint64
				for i, bound := range bounds {
					cum += counts[i]
					fmt.Fprintf(&b, "%s_bucket{le=\"%g\"%s} %d\n", base, bound, labels, cum)
				}
				fmt.Fprintf(&b, "%s_bucket{le=\"+Inf\"%s} %d\n", base, labels, samples)
				suffix := ""
				if labels != "" {
					suffix = "{" + labels[1:] + "}"
				}
				fmt.Fprintf(&b, "%s_sum%s %g\n", base, suffix, sum)
				fmt.Fprintf(&b, "%s_count%s %d\n", base, suffix, samples)
			}
		}
	}
	return b.String()
}

// seriesOf lists the series names in family base, sorted.
func seriesOf[M any](m map[string]M, base string) []string {
	var names []string
	for name := range m {
		if baseName(name) == base {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Handler serves the rendered registry.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}
