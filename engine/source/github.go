package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/pkg/fn"
)

const githubDefaultBaseURL = "https://api.github.com"

// GitHubConfig configures the GitHub trending adapter. Token is optional;
// presence only raises the search API quota.
type GitHubConfig struct {
	BaseURL   string // overrides the API endpoint (tests)
	Languages []string
	Token     string
	PerPage   int
}

// GitHub approximates a trending view through the repository search API:
// repositories created in the past week with more than ten stars, ordered
// by stars, per configured language.
type GitHub struct {
	cfg     GitHubConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
	now     func() time.Time
}

// NewGitHub creates the adapter with defaults filled in.
func NewGitHub(cfg GitHubConfig, log *slog.Logger) *GitHub {
	if cfg.BaseURL == "" {
		cfg.BaseURL = githubDefaultBaseURL
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 10
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{""}
	}
	if log == nil {
		log = slog.Default()
	}
	return &GitHub{
		cfg:     cfg,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		log:     log,
		now:     time.Now,
	}
}

func (g *GitHub) Name() feed.Source { return feed.SourceGitHub }

// githubSearch is the repository search API response.
type githubSearch struct {
	Items []struct {
		FullName    string   `json:"full_name"`
		Description string   `json:"description"`
		HTMLURL     string   `json:"html_url"`
		Stars       int      `json:"stargazers_count"`
		Forks       int      `json:"forks_count"`
		Language    string   `json:"language"`
		Topics      []string `json:"topics"`
		CreatedAt   string   `json:"created_at"`
		Owner       struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"items"`
}

// Fetch searches recent starred repositories per language. A failing
// language query is logged and skipped.
func (g *GitHub) Fetch(ctx context.Context) ([]Candidate, error) {
	weekAgo := g.now().UTC().AddDate(0, 0, -7).Format("2006-01-02")

	header := http.Header{"Accept": {"application/vnd.github+json"}}
	if g.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+g.cfg.Token)
	}

	var out []Candidate
	for _, lang := range g.cfg.Languages {
		q := fmt.Sprintf("created:>%s stars:>10", weekAgo)
		if lang != "" {
			q += " language:" + lang
		}
		params := url.Values{
			"q":        {q},
			"sort":     {"stars"},
			"order":    {"desc"},
			"per_page": {fmt.Sprintf("%d", g.cfg.PerPage)},
		}
		endpoint := g.cfg.BaseURL + "/search/repositories?" + params.Encode()

		result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[githubSearch] {
			if err := g.limiter.Wait(ctx); err != nil {
				return fn.Err[githubSearch](err)
			}
			return getJSON[githubSearch](ctx, g.client, endpoint, header)
		})
		search, err := result.Unwrap()
		if err != nil {
			g.log.Warn("github: search failed", "language", lang, "error", err)
			continue
		}

		for _, repo := range search.Items {
			created, err := time.Parse(time.RFC3339, repo.CreatedAt)
			if err != nil {
				created = g.now().UTC()
			}
			desc := repo.Description
			if desc == "" {
				desc = "No description"
			}
			topics := repo.Topics
			if len(topics) > 5 {
				topics = topics[:5]
			}
			out = append(out, Candidate{
				Source:      feed.SourceGitHub,
				NativeID:    repo.FullName,
				Kind:        "repo",
				Title:       repo.FullName + " - " + desc,
				Summary:     repo.Description,
				URL:         repo.HTMLURL,
				Author:      repo.Owner.Login,
				PublishedAt: created.UTC(),
				Engagement:  float64(repo.Stars),
				Comments:    float64(repo.Forks),
				Attrs: feed.GitHubAttrs{
					Stars:    repo.Stars,
					Forks:    repo.Forks,
					Language: repo.Language,
					Topics:   topics,
					FullName: repo.FullName,
				},
			})
		}
	}
	return out, nil
}
