package run

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/engine/publish"
	"github.com/abratronix/pulse/engine/score"
	"github.com/abratronix/pulse/engine/source"
)

// fakeAdapter serves canned candidates or a canned error, optionally
// blocking until released.
type fakeAdapter struct {
	name  feed.Source
	cands []source.Candidate
	err   error
	block chan struct{}
}

func (f *fakeAdapter) Name() feed.Source { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context) ([]source.Candidate, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.cands, f.err
}

func candidates(src feed.Source, n int) []source.Candidate {
	out := make([]source.Candidate, n)
	for i := range out {
		out[i] = source.Candidate{
			Source:      src,
			NativeID:    string(src) + string(rune('a'+i)),
			Kind:        "story",
			Title:       "title",
			URL:         "https://example.com/" + string(src) + string(rune('a'+i)),
			PublishedAt: time.Now().UTC().Add(-time.Hour),
			Engagement:  float64(100 * (i + 1)),
			Comments:    float64(10 * (i + 1)),
		}
	}
	return out
}

func newTestCoordinator(t *testing.T, cfg Config, adapters ...source.Adapter) (*Coordinator, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.json")
	c := New(cfg, Deps{
		Adapters: adapters,
		Engine:   score.New(score.Config{}),
		Writer:   publish.NewWriter(path),
	})
	return c, path
}

func TestTriggerRunPublishesSnapshot(t *testing.T) {
	c, path := newTestCoordinator(t, Config{},
		&fakeAdapter{name: feed.SourceHackerNews, cands: candidates(feed.SourceHackerNews, 3)},
		&fakeAdapter{name: feed.SourceReddit, cands: candidates(feed.SourceReddit, 2)},
	)

	report, err := c.TriggerRun(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Status != StatusSuccess {
		t.Fatalf("status = %s", report.Status)
	}
	if report.TotalItems != 5 {
		t.Errorf("total = %d, want 5", report.TotalItems)
	}
	if report.Sources[feed.SourceHackerNews] != 3 || report.Sources[feed.SourceReddit] != 2 {
		t.Errorf("source counts wrong: %v", report.Sources)
	}

	snap, err := publish.Load(path)
	if err != nil {
		t.Fatalf("load published: %v", err)
	}
	if snap.TotalItems != 5 {
		t.Errorf("published total = %d", snap.TotalItems)
	}
	for i := 1; i < len(snap.Items); i++ {
		if snap.Items[i-1].TractionScore < snap.Items[i].TractionScore {
			t.Errorf("items not sorted descending at %d", i)
		}
	}
}

func TestTriggerRunSingleFlight(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestCoordinator(t, Config{},
		&fakeAdapter{name: feed.SourceHackerNews, cands: candidates(feed.SourceHackerNews, 1), block: release},
	)

	done := make(chan error, 1)
	go func() {
		_, err := c.TriggerRun(context.Background())
		done <- err
	}()

	// Wait until the first run is visibly in flight.
	deadline := time.After(2 * time.Second)
	for !c.Status().IsRunning {
		select {
		case <-deadline:
			t.Fatal("first run never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := c.TriggerRun(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent trigger: got %v, want ErrRunInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if c.Status().IsRunning {
		t.Error("coordinator still marked running after completion")
	}
}

func TestTriggerRunSurvivesAdapterFailure(t *testing.T) {
	c, _ := newTestCoordinator(t, Config{},
		&fakeAdapter{name: feed.SourceHackerNews, cands: candidates(feed.SourceHackerNews, 2)},
		&fakeAdapter{name: feed.SourceReddit, err: errors.New("api down")},
	)

	report, err := c.TriggerRun(context.Background())
	if err != nil {
		t.Fatalf("run should succeed with partial sources: %v", err)
	}
	if report.TotalItems != 2 {
		t.Errorf("total = %d, want 2", report.TotalItems)
	}
	if _, ok := report.AdapterErrors[feed.SourceReddit]; !ok {
		t.Error("reddit failure not recorded")
	}
}

func TestTriggerRunCapsPerSourceAndTotal(t *testing.T) {
	c, _ := newTestCoordinator(t, Config{MaxPerSource: 2, MaxTotal: 3},
		&fakeAdapter{name: feed.SourceHackerNews, cands: candidates(feed.SourceHackerNews, 5)},
		&fakeAdapter{name: feed.SourceReddit, cands: candidates(feed.SourceReddit, 5)},
	)

	report, err := c.TriggerRun(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.TotalItems != 3 {
		t.Errorf("total = %d, want 3", report.TotalItems)
	}
}

func TestTriggerRunPublishFailureKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.json")
	writer := publish.NewWriter(path)

	good := &fakeAdapter{name: feed.SourceHackerNews, cands: candidates(feed.SourceHackerNews, 2)}
	c := New(Config{}, Deps{
		Adapters: []source.Adapter{good},
		Engine:   score.New(score.Config{}),
		Writer:   writer,
	})
	if _, err := c.TriggerRun(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Make the rename target unusable for the second run.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}

	report, err := c.TriggerRun(context.Background())
	if err == nil {
		t.Fatal("expected publish failure")
	}
	if report.Status != StatusFailed {
		t.Errorf("status = %s, want failed", report.Status)
	}
	if got := c.Status(); got.LastRunStatus != StatusFailed || got.LastError == "" {
		t.Errorf("status view not updated: %+v", got)
	}
}

func TestTriggerRunEmptyBatchPublishesEmptyArray(t *testing.T) {
	c, path := newTestCoordinator(t, Config{},
		&fakeAdapter{name: feed.SourceHackerNews},
	)

	report, err := c.TriggerRun(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.TotalItems != 0 {
		t.Errorf("total = %d, want 0", report.TotalItems)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read published: %v", err)
	}
	if !strings.Contains(string(raw), `"items": []`) {
		t.Errorf("empty run must publish an array, got:\n%s", raw)
	}
}

func TestStatusIdleBeforeFirstRun(t *testing.T) {
	c, _ := newTestCoordinator(t, Config{})
	got := c.Status()
	if got.IsRunning || got.LastRunStatus != StatusIdle {
		t.Errorf("unexpected initial status: %+v", got)
	}
}
