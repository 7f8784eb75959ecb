package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/pkg/fn"
)

const youtubeDefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// ErrMissingAPIKey is returned when the YouTube adapter runs without a key.
var ErrMissingAPIKey = errors.New("youtube API key required")

// ytDurationPattern parses ISO-8601 durations like PT1H2M3S.
var ytDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// YouTubeConfig configures the YouTube adapter. APIKey is required; the
// adapter is normally only registered when a key is configured.
type YouTubeConfig struct {
	BaseURL     string // overrides the Data API endpoint (tests)
	APIKey      string
	SearchTerms []string
	MaxPerTerm  int
}

// YouTube searches the Data API v3 per configured term and batch-fetches
// statistics and content details for the discovered videos.
type YouTube struct {
	cfg     YouTubeConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewYouTube creates the adapter with defaults filled in.
func NewYouTube(cfg YouTubeConfig, log *slog.Logger) *YouTube {
	if cfg.BaseURL == "" {
		cfg.BaseURL = youtubeDefaultBaseURL
	}
	if cfg.MaxPerTerm <= 0 {
		cfg.MaxPerTerm = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &YouTube{
		cfg:     cfg,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		log:     log,
	}
}

func (y *YouTube) Name() feed.Source { return feed.SourceYouTube }

// ytSearchResponse is the Data API search response.
type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

type ytSnippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
	ChannelID    string `json:"channelId"`
	PublishedAt  string `json:"publishedAt"`
	Thumbnails   struct {
		Medium struct {
			URL string `json:"url"`
		} `json:"medium"`
	} `json:"thumbnails"`
}

// ytVideosResponse is the Data API videos response (statistics + details).
type ytVideosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type ytStats struct {
	views    int64
	likes    int64
	comments int64
	duration string
}

// Fetch discovers videos per search term, then hydrates them with view,
// like, and comment counts in batches of up to fifty ids.
func (y *YouTube) Fetch(ctx context.Context) ([]Candidate, error) {
	if y.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	type found struct {
		videoID string
		snippet ytSnippet
	}
	seen := make(map[string]struct{})
	var videos []found

	for _, term := range y.cfg.SearchTerms {
		params := url.Values{
			"part":       {"snippet"},
			"q":          {term},
			"type":       {"video"},
			"order":      {"relevance"},
			"maxResults": {strconv.Itoa(y.cfg.MaxPerTerm)},
			"key":        {y.cfg.APIKey},
		}
		endpoint := y.cfg.BaseURL + "/search?" + params.Encode()

		result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[ytSearchResponse] {
			if err := y.limiter.Wait(ctx); err != nil {
				return fn.Err[ytSearchResponse](err)
			}
			return getJSON[ytSearchResponse](ctx, y.client, endpoint, nil)
		})
		search, err := result.Unwrap()
		if err != nil {
			y.log.Warn("youtube: search failed", "term", term, "error", err)
			continue
		}
		for _, item := range search.Items {
			id := item.ID.VideoID
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			videos = append(videos, found{videoID: id, snippet: item.Snippet})
		}
	}

	stats := y.fetchStats(ctx, fn.Map(videos, func(v found) string { return v.videoID }))

	var out []Candidate
	for _, v := range videos {
		st := stats[v.videoID]
		published, err := time.Parse(time.RFC3339, v.snippet.PublishedAt)
		if err != nil {
			continue
		}
		out = append(out, Candidate{
			Source:      feed.SourceYouTube,
			NativeID:    v.videoID,
			Kind:        "video",
			Title:       v.snippet.Title,
			Summary:     v.snippet.Description,
			URL:         "https://www.youtube.com/watch?v=" + v.videoID,
			Author:      v.snippet.ChannelTitle,
			PublishedAt: published.UTC(),
			// Likes weigh ten times a view so engagement is not pure reach.
			Engagement: float64(st.views + st.likes*10),
			Comments:   float64(st.comments),
			Attrs: feed.YouTubeAttrs{
				VideoID:      v.videoID,
				ChannelID:    v.snippet.ChannelID,
				Thumbnail:    v.snippet.Thumbnails.Medium.URL,
				Duration:     st.duration,
				ViewCount:    st.views,
				LikeCount:    st.likes,
				CommentCount: st.comments,
			},
		})
	}
	return out, nil
}

// fetchStats batch-loads statistics for up to fifty video ids per call.
// Failures leave zeroed stats rather than dropping the videos.
func (y *YouTube) fetchStats(ctx context.Context, ids []string) map[string]ytStats {
	out := make(map[string]ytStats, len(ids))
	for _, batch := range fn.Chunk(ids, 50) {
		params := url.Values{
			"part": {"statistics,contentDetails"},
			"id":   {strings.Join(batch, ",")},
			"key":  {y.cfg.APIKey},
		}
		endpoint := y.cfg.BaseURL + "/videos?" + params.Encode()

		result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[ytVideosResponse] {
			if err := y.limiter.Wait(ctx); err != nil {
				return fn.Err[ytVideosResponse](err)
			}
			return getJSON[ytVideosResponse](ctx, y.client, endpoint, nil)
		})
		resp, err := result.Unwrap()
		if err != nil {
			y.log.Warn("youtube: stats batch failed", "error", err)
			continue
		}
		for _, v := range resp.Items {
			out[v.ID] = ytStats{
				views:    parseCount(v.Statistics.ViewCount),
				likes:    parseCount(v.Statistics.LikeCount),
				comments: parseCount(v.Statistics.CommentCount),
				duration: formatDuration(v.ContentDetails.Duration),
			}
		}
	}
	return out
}

func parseCount(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// formatDuration converts PT1H2M3S to 1:02:03 (or 2:03 without hours).
func formatDuration(iso string) string {
	m := ytDurationPattern.FindStringSubmatch(iso)
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, _ := strconv.Atoi(m[3])
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}
