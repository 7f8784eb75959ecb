package stats

import (
	"testing"

	"github.com/abratronix/pulse/engine/feed"
)

func scored(scores ...float64) []feed.Item {
	items := make([]feed.Item, len(scores))
	for i, s := range scores {
		items[i] = feed.Item{ID: string(rune('a' + i)), TractionScore: s}
	}
	return items
}

func TestPercentileFiveItems(t *testing.T) {
	scores := []float64{90, 80, 70, 60, 50}
	if got := Percentile(scores, 90); got != 90 {
		t.Errorf("p90 = %v, want 90", got)
	}
	if got := Percentile(scores, 75); got != 80 {
		t.Errorf("p75 = %v, want 80", got)
	}
	if got := Percentile(scores, 50); got != 70 {
		t.Errorf("p50 = %v, want 70", got)
	}
}

func TestPercentileSingleItem(t *testing.T) {
	scores := []float64{42}
	for _, p := range []float64{50, 75, 90, 99} {
		if got := Percentile(scores, p); got != 42 {
			t.Errorf("p%v of single item = %v, want 42", p, got)
		}
	}
}

func TestPercentileEmpty(t *testing.T) {
	if got := Percentile(nil, 90); got != 0 {
		t.Errorf("empty input = %v, want 0", got)
	}
}

func TestCompute(t *testing.T) {
	got := Compute(scored(90, 80, 70, 60, 50))
	want := feed.TractionStats{MaxScore: 90, P90Score: 90, P75Score: 80}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestComputeEmpty(t *testing.T) {
	if got := Compute(nil); got != (feed.TractionStats{}) {
		t.Errorf("empty batch should yield zero stats, got %+v", got)
	}
}
