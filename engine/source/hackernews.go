package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/pkg/fn"
)

const hnDefaultBaseURL = "https://hacker-news.firebaseio.com"

// HackerNewsConfig configures the Hacker News adapter.
type HackerNewsConfig struct {
	// BaseURL overrides the Firebase API endpoint (tests).
	BaseURL string
	// TopN is how many story ids to take from each listing.
	TopN int
	// Workers bounds concurrent item-detail fetches.
	Workers int
}

// HackerNews fetches top and best stories from the public Firebase API.
// No credentials exist for this source.
type HackerNews struct {
	cfg     HackerNewsConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewHackerNews creates the adapter with defaults filled in.
func NewHackerNews(cfg HackerNewsConfig, log *slog.Logger) *HackerNews {
	if cfg.BaseURL == "" {
		cfg.BaseURL = hnDefaultBaseURL
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 60
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &HackerNews{
		cfg:     cfg,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 10),
		log:     log,
	}
}

func (h *HackerNews) Name() feed.Source { return feed.SourceHackerNews }

// hnItem is the Firebase item payload.
type hnItem struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	By          string `json:"by"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Time        int64  `json:"time"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
}

// Fetch pulls the top and best story listings and hydrates each story.
// A failing listing is logged and skipped; the adapter errors only when
// every listing is unavailable.
func (h *HackerNews) Fetch(ctx context.Context) ([]Candidate, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	var listingErrs []error

	for _, listing := range []string{"topstories", "beststories"} {
		result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[[]int64] {
			if err := h.limiter.Wait(ctx); err != nil {
				return fn.Err[[]int64](err)
			}
			return getJSON[[]int64](ctx, h.client, fmt.Sprintf("%s/v0/%s.json", h.cfg.BaseURL, listing), nil)
		})
		listIDs, err := result.Unwrap()
		if err != nil {
			h.log.Warn("hackernews: listing fetch failed", "listing", listing, "error", err)
			listingErrs = append(listingErrs, fmt.Errorf("%s listing: %w", listing, err))
			continue
		}
		if len(listIDs) > h.cfg.TopN {
			listIDs = listIDs[:h.cfg.TopN]
		}
		for _, id := range listIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 && len(listingErrs) > 0 {
		return nil, errors.Join(listingErrs...)
	}

	results := fn.ParMapResult(ids, h.cfg.Workers, func(id int64) fn.Result[hnItem] {
		if err := h.limiter.Wait(ctx); err != nil {
			return fn.Err[hnItem](err)
		}
		return getJSON[hnItem](ctx, h.client, fmt.Sprintf("%s/v0/item/%d.json", h.cfg.BaseURL, id), nil)
	})

	var out []Candidate
	for _, r := range results {
		story, err := r.Unwrap()
		if err != nil {
			continue // single-item failures do not fail the source
		}
		if story.Dead || story.Deleted || story.Title == "" {
			continue
		}
		if story.Type != "story" && story.Type != "ask" && story.Type != "show" {
			continue
		}
		out = append(out, h.toCandidate(story))
	}
	return out, nil
}

func (h *HackerNews) toCandidate(story hnItem) Candidate {
	url := story.URL
	if url == "" {
		url = "https://news.ycombinator.com/item?id=" + strconv.FormatInt(story.ID, 10)
	}
	return Candidate{
		Source:      feed.SourceHackerNews,
		NativeID:    strconv.FormatInt(story.ID, 10),
		Kind:        "story",
		Title:       story.Title,
		Summary:     story.Text,
		URL:         url,
		Author:      story.By,
		PublishedAt: time.Unix(story.Time, 0).UTC(),
		Engagement:  float64(story.Score),
		Comments:    float64(story.Descendants),
		Attrs: feed.HackerNewsAttrs{
			StoryID:     story.ID,
			Points:      story.Score,
			NumComments: story.Descendants,
			StoryType:   story.Type,
		},
	}
}
