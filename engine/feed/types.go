// Package feed defines the canonical item and snapshot model shared by the
// whole aggregation pipeline: adapters produce raw candidates, the normalizer
// maps them into Items, and a completed run publishes one Snapshot.
package feed

import (
	"encoding/json"
	"time"
)

// Source identifies the origin of an item.
type Source string

const (
	SourceHackerNews Source = "hackernews"
	SourceReddit     Source = "reddit"
	SourceGitHub     Source = "github"
	SourceYouTube    Source = "youtube"
	SourceNews       Source = "news"
)

// KnownSources lists every source the pipeline understands, in display order.
var KnownSources = []Source{
	SourceHackerNews, SourceReddit, SourceGitHub, SourceYouTube, SourceNews,
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	for _, k := range KnownSources {
		if s == k {
			return true
		}
	}
	return false
}

// Item is one piece of aggregated content. Items live only for the duration
// of a run; they are never persisted individually.
type Item struct {
	ID            string
	Source        Source
	Kind          string
	Title         string
	Summary       string
	URL           string
	Author        string
	PublishedAt   time.Time
	TractionScore float64
	Attrs         Attributes
}

// itemWire is the JSON shape of an Item in the published document.
type itemWire struct {
	ID            string          `json:"id"`
	Source        Source          `json:"source"`
	Kind          string          `json:"type"`
	Title         string          `json:"title"`
	Summary       string          `json:"summary"`
	URL           string          `json:"url"`
	Author        string          `json:"author"`
	PublishedAt   time.Time       `json:"date"`
	TractionScore float64         `json:"traction_score"`
	Meta          json.RawMessage `json:"meta,omitempty"`
}

// MarshalJSON flattens the source-specific attribute variant into "meta".
func (it Item) MarshalJSON() ([]byte, error) {
	w := itemWire{
		ID:            it.ID,
		Source:        it.Source,
		Kind:          it.Kind,
		Title:         it.Title,
		Summary:       it.Summary,
		URL:           it.URL,
		Author:        it.Author,
		PublishedAt:   it.PublishedAt.UTC(),
		TractionScore: it.TractionScore,
	}
	if it.Attrs != nil {
		meta, err := json.Marshal(it.Attrs)
		if err != nil {
			return nil, err
		}
		w.Meta = meta
	}
	return json.Marshal(w)
}

// UnmarshalJSON selects the attribute variant by the item's source.
func (it *Item) UnmarshalJSON(data []byte) error {
	var w itemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	it.ID = w.ID
	it.Source = w.Source
	it.Kind = w.Kind
	it.Title = w.Title
	it.Summary = w.Summary
	it.URL = w.URL
	it.Author = w.Author
	it.PublishedAt = w.PublishedAt
	it.TractionScore = w.TractionScore
	it.Attrs = nil
	if len(w.Meta) == 0 {
		return nil
	}
	attrs, err := unmarshalAttrs(w.Source, w.Meta)
	if err != nil {
		return err
	}
	it.Attrs = attrs
	return nil
}

// TractionStats holds batch-wide score thresholds.
type TractionStats struct {
	MaxScore float64 `json:"max_score"`
	P90Score float64 `json:"p90_score"`
	P75Score float64 `json:"p75_score"`
}

// Snapshot is the published artifact of one run. It is immutable once
// written; each successful run wholly replaces the previous one.
type Snapshot struct {
	GeneratedAt   time.Time      `json:"generated_at"`
	TotalItems    int            `json:"total_items"`
	Sources       map[Source]int `json:"sources"`
	TractionStats TractionStats  `json:"traction_stats"`
	Items         []Item         `json:"items"`
}
