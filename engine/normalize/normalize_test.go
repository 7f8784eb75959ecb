package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/engine/source"
)

func validCandidate() source.Candidate {
	return source.Candidate{
		Source:      feed.SourceHackerNews,
		NativeID:    "123",
		Kind:        "story",
		Title:       "A new systems language",
		Summary:     "<p>Fast &amp; safe.</p>",
		URL:         "https://example.com/lang",
		Author:      "alice",
		PublishedAt: time.Now().UTC().Add(-time.Hour),
		Engagement:  120,
		Comments:    45,
		Attrs:       feed.HackerNewsAttrs{StoryID: 123, Points: 120, NumComments: 45, StoryType: "story"},
	}
}

func TestItemIDDeterministic(t *testing.T) {
	a := ItemID(feed.SourceReddit, "t3_abc")
	b := ItemID(feed.SourceReddit, "t3_abc")
	if a != b {
		t.Fatalf("same inputs produced %s and %s", a, b)
	}
	if a == ItemID(feed.SourceHackerNews, "t3_abc") {
		t.Error("different sources must not collide")
	}
	if a == ItemID(feed.SourceReddit, "t3_abd") {
		t.Error("different native ids must not collide")
	}
}

func TestItemIDIgnoresMutableFields(t *testing.T) {
	now := time.Now().UTC()
	c := validCandidate()
	first, err := One(c, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	c.Title = "Retitled after the fact"
	c.Engagement = 99999
	second, err := One(c, now)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("id changed with mutable fields: %s vs %s", first.ID, second.ID)
	}
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"", 10, ""},
		{"plain text", 0, "plain text"},
		{"<b>bold</b> move", 0, "bold move"},
		{"a &amp; b", 0, "a & b"},
		{"  spaced \n\n out  ", 0, "spaced out"},
		{"abcdefgh", 5, "abcde"},
	}
	for _, tc := range cases {
		if got := CleanText(tc.in, tc.max); got != tc.want {
			t.Errorf("CleanText(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestCleanTextTruncatesRunes(t *testing.T) {
	in := strings.Repeat("é", MaxSummaryLen+50)
	got := CleanText(in, MaxSummaryLen)
	if n := len([]rune(got)); n != MaxSummaryLen {
		t.Errorf("got %d runes, want %d", n, MaxSummaryLen)
	}
}

func TestOneClampsNegativeSignals(t *testing.T) {
	c := validCandidate()
	c.Engagement = -5
	c.Comments = -1
	it, err := One(c, time.Now().UTC())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if it.Engagement != 0 || it.Comments != 0 {
		t.Errorf("negative signals not clamped: %v %v", it.Engagement, it.Comments)
	}
}

func TestBatchDropsInvalid(t *testing.T) {
	now := time.Now().UTC()
	good := validCandidate()
	noTitle := validCandidate()
	noTitle.Title = ""
	future := validCandidate()
	future.PublishedAt = now.Add(time.Hour)

	items, dropped := Batch([]source.Candidate{good, noTitle, future}, now)
	if len(items) != 1 {
		t.Fatalf("expected 1 surviving item, got %d", len(items))
	}
	if dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}
}

func TestDedupe(t *testing.T) {
	now := time.Now().UTC()
	a, _ := One(validCandidate(), now)

	sameID := a

	other := validCandidate()
	other.NativeID = "456"
	other.URL = "https://example.com/other"
	b, _ := One(other, now)

	crossSource := validCandidate()
	crossSource.Source = feed.SourceReddit
	crossSource.NativeID = "t3_xyz"
	crossSource.Attrs = feed.RedditAttrs{Subreddit: "golang"}
	c, _ := One(crossSource, now) // same URL as a, different id

	got := Dedupe([]Item{a, sameID, b, c})
	if len(got) != 2 {
		t.Fatalf("expected 2 unique items, got %d", len(got))
	}
	if got[0].ID != a.ID {
		t.Errorf("first seen should win, got %s", got[0].ID)
	}
}
