// Package run owns the run lifecycle: it is the single entry point external
// triggers call, enforces single-flight execution, drives the
// fetch-normalize-dedupe-score-publish pipeline, and records run status for
// operational visibility.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/engine/normalize"
	"github.com/abratronix/pulse/engine/publish"
	"github.com/abratronix/pulse/engine/score"
	"github.com/abratronix/pulse/engine/source"
	"github.com/abratronix/pulse/engine/stats"
	"github.com/abratronix/pulse/pkg/fn"
	"github.com/abratronix/pulse/pkg/metrics"
	"github.com/abratronix/pulse/pkg/resilience"
)

// ErrRunInProgress is returned when a trigger arrives while a run is
// already active. The trigger is a no-op; it is not queued.
var ErrRunInProgress = errors.New("run already in progress")

// Status is the terminal or current state of a run.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Config tunes the coordinator. Zero values fall back to defaults.
type Config struct {
	// AdapterTimeout bounds each adapter's fetch independently.
	AdapterTimeout time.Duration
	// MaxPerSource caps how many candidates one adapter may contribute.
	MaxPerSource int
	// MaxTotal caps the published snapshot size.
	MaxTotal int
}

func (c Config) withDefaults() Config {
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 60 * time.Second
	}
	if c.MaxPerSource <= 0 {
		c.MaxPerSource = 30
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = 200
	}
	return c
}

// Deps holds the coordinator's collaborators.
type Deps struct {
	Adapters []source.Adapter
	Engine   *score.Engine
	Writer   *publish.Writer
	Logger   *slog.Logger
	Metrics  *metrics.Registry
	// OnReport, when set, is invoked with the report of every finished run.
	OnReport func(context.Context, Report)
}

// Report summarizes one finished run.
type Report struct {
	Status          Status                 `json:"status"`
	StartedAt       time.Time              `json:"started_at"`
	DurationSeconds float64                `json:"duration_seconds"`
	TotalItems      int                    `json:"total_items"`
	Sources         map[feed.Source]int    `json:"sources,omitempty"`
	TractionStats   feed.TractionStats     `json:"traction_stats"`
	Dropped         int                    `json:"dropped"`
	AdapterErrors   map[feed.Source]string `json:"adapter_errors,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// StatusView is the read-only coordinator state exposed to callers.
type StatusView struct {
	IsRunning      bool      `json:"is_running"`
	LastRunAt      time.Time `json:"last_run_at"`
	LastRunStatus  Status    `json:"last_run_status"`
	LastRunSeconds float64   `json:"last_run_duration_seconds"`
	LastError      string    `json:"last_error,omitempty"`
	LastTotalItems int       `json:"last_total_items"`
}

// Coordinator is constructed once at startup and passed by reference to
// whatever issues triggers.
type Coordinator struct {
	cfg      Config
	deps     Deps
	breakers map[feed.Source]*resilience.Breaker
	log      *slog.Logger
	met      *runMetrics

	running atomic.Bool

	mu   sync.Mutex
	last StatusView
}

// New creates a Coordinator.
func New(cfg Config, deps Deps) *Coordinator {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	breakers := make(map[feed.Source]*resilience.Breaker, len(deps.Adapters))
	for _, a := range deps.Adapters {
		breakers[a.Name()] = resilience.NewBreaker(resilience.BreakerOpts{})
	}
	return &Coordinator{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		breakers: breakers,
		log:      log,
		met:      newRunMetrics(deps.Metrics),
		last:     StatusView{LastRunStatus: StatusIdle},
	}
}

// Status returns a read-only view of the coordinator state.
func (c *Coordinator) Status() StatusView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.last
	v.IsRunning = c.running.Load()
	return v
}

// TriggerRun executes one full pipeline run. It is the idempotent "run now"
// entry point: if a run is already active the call returns ErrRunInProgress
// with no side effects. There is no mid-flight cancellation; adapters bound
// their own worst case through per-adapter timeouts.
func (c *Coordinator) TriggerRun(ctx context.Context) (Report, error) {
	if !c.running.CompareAndSwap(false, true) {
		c.met.rejected()
		return Report{}, ErrRunInProgress
	}
	defer c.running.Store(false)

	started := time.Now().UTC()
	c.log.Info("run started", "adapters", len(c.deps.Adapters))

	report := c.execute(ctx, started)
	report.StartedAt = started
	report.DurationSeconds = time.Since(started).Seconds()

	c.record(report)
	c.met.finished(report)
	if c.deps.OnReport != nil {
		c.deps.OnReport(ctx, report)
	}

	if report.Status == StatusFailed {
		c.log.Error("run failed", "error", report.Error, "duration", time.Since(started))
		return report, fmt.Errorf("run failed: %s", report.Error)
	}
	c.log.Info("run finished",
		"items", report.TotalItems,
		"dropped", report.Dropped,
		"adapter_errors", len(report.AdapterErrors),
		"duration", time.Since(started),
	)
	return report, nil
}

// adapterResult is one adapter's contribution to a run.
type adapterResult struct {
	source feed.Source
	cands  []source.Candidate
	err    error
}

// execute runs fetch fan-out and the normalize-dedupe-score-publish stages.
func (c *Coordinator) execute(ctx context.Context, started time.Time) Report {
	report := Report{Status: StatusSuccess, AdapterErrors: map[feed.Source]string{}}

	// Fan-out: every adapter runs concurrently under its own deadline and
	// circuit breaker, writing into its own result slot. An adapter failure
	// becomes an empty contribution; it never fails the run.
	fetchers := fn.Map(c.deps.Adapters, func(a source.Adapter) func() adapterResult {
		return func() adapterResult {
			actx, cancel := context.WithTimeout(ctx, c.cfg.AdapterTimeout)
			defer cancel()

			var cands []source.Candidate
			err := c.breakers[a.Name()].Call(actx, func(ctx context.Context) error {
				got, err := a.Fetch(ctx)
				cands = got
				return err
			})
			return adapterResult{source: a.Name(), cands: cands, err: err}
		}
	})
	results := fn.FanOut(fetchers...)

	var all []source.Candidate
	for _, r := range results {
		if r.err != nil {
			c.log.Warn("adapter failed", "source", r.source, "error", r.err)
			report.AdapterErrors[r.source] = r.err.Error()
			c.met.adapterFailure(r.source)
			continue
		}
		cands := r.cands
		if len(cands) > c.cfg.MaxPerSource {
			cands = cands[:c.cfg.MaxPerSource]
		}
		c.log.Info("adapter finished", "source", r.source, "candidates", len(cands))
		c.met.adapterItems(r.source, len(cands))
		all = append(all, cands...)
	}

	// Sequential merge stages, traced.
	dropped := 0
	normalizeStage := fn.TracedStage("normalize",
		fn.Stage[[]source.Candidate, []normalize.Item](func(_ context.Context, cands []source.Candidate) fn.Result[[]normalize.Item] {
			items, n := normalize.Batch(cands, started)
			dropped = n
			return fn.Ok(items)
		}))
	dedupeStage := fn.TracedStage("dedupe", fn.MapStage(normalize.Dedupe))
	rankStage := fn.TracedStage("score", fn.MapStage(c.deps.Engine.Rank))

	pipeline := fn.Then(normalizeStage, fn.Then(dedupeStage, rankStage))
	ranked, _ := pipeline(ctx, all).Unwrap()
	if len(ranked) > c.cfg.MaxTotal {
		ranked = ranked[:c.cfg.MaxTotal]
	}
	report.Dropped = dropped

	counts := make(map[feed.Source]int)
	for _, it := range ranked {
		counts[it.Source]++
	}

	snap := feed.Snapshot{
		GeneratedAt:   time.Now().UTC(),
		TotalItems:    len(ranked),
		Sources:       counts,
		TractionStats: stats.Compute(ranked),
		Items:         ranked,
	}

	// A write failure is the one core-level failure: the run is marked
	// failed and the previously published snapshot stays authoritative.
	if err := c.deps.Writer.Publish(snap); err != nil {
		report.Status = StatusFailed
		report.Error = err.Error()
		return report
	}

	report.TotalItems = snap.TotalItems
	report.Sources = counts
	report.TractionStats = snap.TractionStats
	return report
}

// record updates the last-run fields exposed via Status.
func (c *Coordinator) record(r Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = StatusView{
		LastRunAt:      r.StartedAt,
		LastRunStatus:  r.Status,
		LastRunSeconds: r.DurationSeconds,
		LastError:      r.Error,
		LastTotalItems: r.TotalItems,
	}
}
