// Package normalize maps raw source candidates into canonical feed items:
// stable identity, HTML-free bounded summaries, and per-candidate validation
// that drops bad records without aborting the batch.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/engine/source"
	"github.com/abratronix/pulse/pkg/fn"
)

// MaxSummaryLen bounds the summary length in runes.
const MaxSummaryLen = 300

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Item is a normalized candidate: the canonical feed item plus the raw
// popularity signals the score engine consumes.
type Item struct {
	feed.Item
	Engagement float64
	Comments   float64
}

// ItemID computes the stable fingerprint for an upstream item. It hashes
// only (source, native id), never mutable fields, so the same upstream item
// maps to the same id on every run.
func ItemID(src feed.Source, nativeID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(src)+":"+nativeID)).String()
}

// CleanText decodes HTML entities, strips tags, collapses whitespace, and
// truncates to max runes.
func CleanText(s string, max int) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	s = tagPattern.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	if max > 0 {
		if runes := []rune(s); len(runes) > max {
			s = string(runes[:max])
		}
	}
	return s
}

// One maps a single candidate into a normalized item, or reports the
// validation failure that disqualifies it.
func One(c source.Candidate, now time.Time) (Item, error) {
	it := feed.Item{
		ID:          ItemID(c.Source, c.NativeID),
		Source:      c.Source,
		Kind:        c.Kind,
		Title:       CleanText(c.Title, 0),
		Summary:     CleanText(c.Summary, MaxSummaryLen),
		URL:         c.URL,
		Author:      c.Author,
		PublishedAt: c.PublishedAt.UTC(),
		Attrs:       c.Attrs,
	}
	if err := feed.ValidateItem(it, now); err != nil {
		return Item{}, err
	}
	eng := c.Engagement
	if eng < 0 {
		eng = 0
	}
	cmt := c.Comments
	if cmt < 0 {
		cmt = 0
	}
	return Item{Item: it, Engagement: eng, Comments: cmt}, nil
}

// Batch normalizes a slice of candidates, dropping invalid ones. It returns
// the surviving items and the number dropped.
func Batch(cands []source.Candidate, now time.Time) ([]Item, int) {
	out := fn.FilterMap(cands, func(c source.Candidate) (Item, bool) {
		it, err := One(c, now)
		return it, err == nil
	})
	return out, len(cands) - len(out)
}

// Dedupe merges the concatenated adapter outputs into a unique set: first
// seen wins on id collisions, and identical urls across sources collapse to
// one record.
func Dedupe(items []Item) []Item {
	items = fn.UniqueBy(items, func(it Item) string { return it.ID })
	return fn.UniqueBy(items, func(it Item) string { return it.URL })
}
