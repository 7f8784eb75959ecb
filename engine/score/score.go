// Package score computes the multi-factor traction score and produces the
// final ordering of a batch.
//
// score = 100 * (0.40*engagement + 0.20*comments + 0.25*recency + 0.15*weight)
//
// Engagement and comment signals are log-compressed and scaled per source
// against that source's own batch maximum (with a per-source floor), so a
// source with naturally large raw numbers cannot dominate the blend.
// Recency is a continuous half-life decay over item age.
package score

import (
	"math"
	"sort"
	"time"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/engine/normalize"
	"github.com/abratronix/pulse/pkg/fn"
)

// Blend weights for the four factors.
const (
	engagementWeight = 0.40
	commentsWeight   = 0.20
	recencyWeight    = 0.25
	sourceWeight     = 0.15
)

// DefaultHalfLife is the recency half-life: an item loses half its recency
// contribution every 12 hours and is negligible after a few days.
const DefaultHalfLife = 12 * time.Hour

// DefaultSourceWeights express source priority on a [0,1] scale.
var DefaultSourceWeights = map[feed.Source]float64{
	feed.SourceHackerNews: 1.0,
	feed.SourceReddit:     0.85,
	feed.SourceGitHub:     0.75,
	feed.SourceYouTube:    0.65,
	feed.SourceNews:       0.55,
}

// engagementFloors keep the per-source scale from collapsing on tiny
// batches: the scale is max(batch max, floor).
var engagementFloors = map[feed.Source]float64{
	feed.SourceHackerNews: 5000,
	feed.SourceReddit:     5000,
	feed.SourceGitHub:     10000,
	feed.SourceYouTube:    1_000_000,
	feed.SourceNews:       1,
}

var commentFloors = map[feed.Source]float64{
	feed.SourceHackerNews: 500,
	feed.SourceReddit:     500,
	feed.SourceGitHub:     2000,
	feed.SourceYouTube:    500,
	feed.SourceNews:       1,
}

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	SourceWeights map[feed.Source]float64
	HalfLife      time.Duration
}

// Engine scores and orders normalized batches.
type Engine struct {
	weights  map[feed.Source]float64
	halfLife time.Duration
	now      func() time.Time
}

// New creates an Engine.
func New(cfg Config) *Engine {
	weights := cfg.SourceWeights
	if weights == nil {
		weights = DefaultSourceWeights
	}
	halfLife := cfg.HalfLife
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	return &Engine{weights: weights, halfLife: halfLife, now: time.Now}
}

// scale is the per-source normalization denominator for one batch.
type scale struct {
	engagement float64
	comments   float64
}

// Rank scores every item and returns the batch sorted descending by
// traction score, ties broken by more recent publish time.
func (e *Engine) Rank(items []normalize.Item) []feed.Item {
	scales := e.batchScales(items)
	now := e.now().UTC()

	out := fn.Map(items, func(it normalize.Item) feed.Item {
		sc := scales[it.Source]
		scored := it.Item
		scored.TractionScore = e.score(it, sc, now)
		return scored
	})

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TractionScore != out[j].TractionScore {
			return out[i].TractionScore > out[j].TractionScore
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out
}

// batchScales computes the per-source normalization scales from the batch's
// own distribution.
func (e *Engine) batchScales(items []normalize.Item) map[feed.Source]scale {
	scales := make(map[feed.Source]scale)
	for src, group := range fn.GroupBy(items, func(it normalize.Item) feed.Source { return it.Source }) {
		var maxEng, maxCmt float64
		for _, it := range group {
			maxEng = math.Max(maxEng, it.Engagement)
			maxCmt = math.Max(maxCmt, it.Comments)
		}
		scales[src] = scale{
			engagement: math.Max(maxEng, floorFor(engagementFloors, src)),
			comments:   math.Max(maxCmt, floorFor(commentFloors, src)),
		}
	}
	return scales
}

func floorFor(floors map[feed.Source]float64, src feed.Source) float64 {
	if f, ok := floors[src]; ok {
		return f
	}
	return 1
}

func (e *Engine) score(it normalize.Item, sc scale, now time.Time) float64 {
	engNorm := logNorm(it.Engagement, sc.engagement)
	cmtNorm := logNorm(it.Comments, sc.comments)
	recency := e.recency(it.PublishedAt, now)
	weight := e.weights[it.Source]

	s := 100 * (engagementWeight*engNorm +
		commentsWeight*cmtNorm +
		recencyWeight*recency +
		sourceWeight*weight)
	return math.Round(s*100) / 100
}

// logNorm compresses v into [0,1] relative to the source scale.
func logNorm(v, scale float64) float64 {
	if v <= 0 || scale <= 0 {
		return 0
	}
	if v > scale {
		v = scale
	}
	return math.Log1p(v) / math.Log1p(scale)
}

// recency is a continuous exponential decay over item age, 1 at age zero
// and halved every halfLife. Ages are clamped to zero so modest clock skew
// cannot push the factor above one.
func (e *Engine) recency(published, now time.Time) float64 {
	age := now.Sub(published)
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * age.Hours() / e.halfLife.Hours())
}
