package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/pkg/fn"
)

const (
	redditPublicBaseURL = "https://www.reddit.com"
	redditOAuthBaseURL  = "https://oauth.reddit.com"
	redditAuthURL       = "https://www.reddit.com/api/v1/access_token"
	redditUserAgent     = "pulse/1.0 (tech trending aggregator)"
)

// RedditConfig configures the Reddit adapter. ClientID/ClientSecret are
// optional; when present the adapter authenticates and uses the OAuth
// endpoint, a decision invisible to the rest of the pipeline.
type RedditConfig struct {
	BaseURL      string // overrides the listing endpoint (tests)
	AuthURL      string // overrides the token endpoint (tests)
	Subreddits   []string
	PostsPerSub  int
	ClientID     string
	ClientSecret string
}

// Reddit fetches hot posts from the configured subreddits.
type Reddit struct {
	cfg     RedditConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger

	token string
}

// NewReddit creates the adapter with defaults filled in.
func NewReddit(cfg RedditConfig, log *slog.Logger) *Reddit {
	if cfg.BaseURL == "" {
		if cfg.ClientID != "" && cfg.ClientSecret != "" {
			cfg.BaseURL = redditOAuthBaseURL
		} else {
			cfg.BaseURL = redditPublicBaseURL
		}
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = redditAuthURL
	}
	if cfg.PostsPerSub <= 0 {
		cfg.PostsPerSub = 15
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reddit{
		cfg:     cfg,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Every(600*time.Millisecond), 2),
		log:     log,
	}
}

func (r *Reddit) Name() feed.Source { return feed.SourceReddit }

// redditListing is the Reddit listing API response.
type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID            string  `json:"id"`
	Subreddit     string  `json:"subreddit"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	SelfText      string  `json:"selftext"`
	URL           string  `json:"url"`
	Permalink     string  `json:"permalink"`
	Score         int     `json:"score"`
	NumComments   int     `json:"num_comments"`
	CreatedUTC    float64 `json:"created_utc"`
	Stickied      bool    `json:"stickied"`
	Thumbnail     string  `json:"thumbnail"`
	LinkFlairText string  `json:"link_flair_text"`
}

// Fetch pulls hot posts per subreddit. A failing subreddit is logged and
// skipped; the remaining ones still contribute.
func (r *Reddit) Fetch(ctx context.Context) ([]Candidate, error) {
	if r.cfg.ClientID != "" && r.cfg.ClientSecret != "" {
		// Client-credentials tokens expire after about an hour. A fresh
		// token per fetch keeps a long-running daemon from reusing a dead
		// one and losing the source on every later run.
		r.token = ""
		if err := r.authenticate(ctx); err != nil {
			return nil, fmt.Errorf("reddit auth: %w", err)
		}
	}

	var out []Candidate
	for _, sub := range r.cfg.Subreddits {
		posts, err := r.fetchSubreddit(ctx, sub)
		if err != nil {
			r.log.Warn("reddit: subreddit fetch failed", "subreddit", sub, "error", err)
			continue
		}
		out = append(out, posts...)
	}
	return out, nil
}

func (r *Reddit) fetchSubreddit(ctx context.Context, sub string) ([]Candidate, error) {
	endpoint := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=1", r.cfg.BaseURL, sub, r.cfg.PostsPerSub)

	header := http.Header{"User-Agent": {redditUserAgent}}
	if r.token != "" {
		header.Set("Authorization", "Bearer "+r.token)
	}

	result := fn.Retry(ctx, fn.RetryOpts{MaxAttempts: 3, InitialWait: 2 * time.Second, MaxWait: 15 * time.Second, Jitter: true},
		func(ctx context.Context) fn.Result[redditListing] {
			if err := r.limiter.Wait(ctx); err != nil {
				return fn.Err[redditListing](err)
			}
			return getJSON[redditListing](ctx, r.client, endpoint, header)
		})
	listing, err := result.Unwrap()
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, child := range listing.Data.Children {
		d := child.Data
		if d.Stickied {
			continue
		}
		link := d.URL
		if link == "" {
			link = redditPublicBaseURL + d.Permalink
		}
		thumb := ""
		if strings.HasPrefix(d.Thumbnail, "http") {
			thumb = d.Thumbnail
		}
		out = append(out, Candidate{
			Source:      feed.SourceReddit,
			NativeID:    d.ID,
			Kind:        "post",
			Title:       d.Title,
			Summary:     d.SelfText,
			URL:         link,
			Author:      d.Author,
			PublishedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
			Engagement:  float64(d.Score),
			Comments:    float64(d.NumComments),
			Attrs: feed.RedditAttrs{
				Subreddit:   d.Subreddit,
				Score:       d.Score,
				NumComments: d.NumComments,
				Thumbnail:   thumb,
				Flair:       d.LinkFlairText,
			},
		})
	}
	return out, nil
}

// authenticate performs the client-credentials OAuth flow.
func (r *Reddit) authenticate(ctx context.Context) error {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(r.cfg.ClientID, r.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", redditUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("token endpoint status %d: %s", resp.StatusCode, body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("empty access token")
	}
	r.token = tok.AccessToken
	return nil
}
