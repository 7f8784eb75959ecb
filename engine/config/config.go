// Package config loads runtime configuration from an optional YAML file and
// API credentials from the environment, and assembles the set of source
// adapters a deployment actually runs.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/engine/source"
)

// Config is the full runtime configuration. Every field has a usable
// default; a deployment only overrides what it cares about.
type Config struct {
	Output  Output  `yaml:"output"`
	Limits  Limits  `yaml:"limits"`
	Sources Sources `yaml:"sources"`
	Scoring Scoring `yaml:"scoring"`
}

// Output locates the published snapshot.
type Output struct {
	Path string `yaml:"path"`
}

// Limits bound run size and adapter runtime.
type Limits struct {
	MaxPerSource          int `yaml:"max_per_source"`
	MaxTotal              int `yaml:"max_total"`
	AdapterTimeoutSeconds int `yaml:"adapter_timeout_seconds"`
}

// Sources selects what each adapter pulls.
type Sources struct {
	HackerNews HackerNews `yaml:"hackernews"`
	Reddit     Reddit     `yaml:"reddit"`
	GitHub     GitHub     `yaml:"github"`
	YouTube    YouTube    `yaml:"youtube"`
	News       News       `yaml:"news"`
}

type HackerNews struct {
	Enabled bool `yaml:"enabled"`
	TopN    int  `yaml:"top_n"`
}

type Reddit struct {
	Enabled     bool     `yaml:"enabled"`
	Subreddits  []string `yaml:"subreddits"`
	PostsPerSub int      `yaml:"posts_per_sub"`
}

type GitHub struct {
	Enabled   bool     `yaml:"enabled"`
	Languages []string `yaml:"languages"`
	PerPage   int      `yaml:"per_page"`
}

type YouTube struct {
	Enabled     bool     `yaml:"enabled"`
	SearchTerms []string `yaml:"search_terms"`
	MaxPerTerm  int      `yaml:"max_per_term"`
}

type News struct {
	Enabled bool     `yaml:"enabled"`
	Feeds   []string `yaml:"feeds"`
	PerFeed int      `yaml:"per_feed"`
}

// Scoring tunes the traction formula.
type Scoring struct {
	HalfLifeHours int                     `yaml:"half_life_hours"`
	SourceWeights map[feed.Source]float64 `yaml:"source_weights"`
}

// Credentials are the secrets read from the environment, never from YAML.
type Credentials struct {
	YouTubeAPIKey      string
	GitHubToken        string
	RedditClientID     string
	RedditClientSecret string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Output: Output{Path: "data/feed.json"},
		Limits: Limits{
			MaxPerSource:          30,
			MaxTotal:              200,
			AdapterTimeoutSeconds: 60,
		},
		Sources: Sources{
			HackerNews: HackerNews{Enabled: true, TopN: 60},
			Reddit: Reddit{
				Enabled: true,
				Subreddits: []string{
					"technology", "programming", "MachineLearning", "artificial",
					"LocalLLaMA", "webdev", "devops", "netsec", "Futurology",
					"gadgets", "hardware", "linux", "Python", "javascript",
					"rust", "golang",
				},
				PostsPerSub: 15,
			},
			GitHub: GitHub{
				Enabled:   true,
				Languages: []string{"", "python", "typescript", "rust", "go"},
				PerPage:   10,
			},
			YouTube: YouTube{
				Enabled: true,
				SearchTerms: []string{
					"AI news 2026",
					"tech news this week",
					"machine learning tutorial 2026",
					"open source project 2026",
					"programming tutorial trending",
				},
				MaxPerTerm: 10,
			},
			News: News{
				Enabled: true,
				Feeds: []string{
					"https://feeds.feedburner.com/TechCrunch/",
					"https://www.theverge.com/rss/index.xml",
					"https://www.wired.com/feed/rss",
					"https://arstechnica.com/feed/",
					"https://www.technologyreview.com/feed/",
					"https://venturebeat.com/feed/",
					"https://hnrss.org/frontpage",
				},
				PerFeed: 15,
			},
		},
		Scoring: Scoring{HalfLifeHours: 12},
	}
}

// Load reads YAML at path over the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// AdapterTimeout returns the per-adapter deadline as a duration.
func (l Limits) AdapterTimeout() time.Duration {
	return time.Duration(l.AdapterTimeoutSeconds) * time.Second
}

// CredentialsFromEnv reads API secrets from the process environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		YouTubeAPIKey:      os.Getenv("YOUTUBE_API_KEY"),
		GitHubToken:        os.Getenv("GITHUB_TOKEN"),
		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
	}
}

// BuildAdapters assembles the adapter set for a deployment. Sources are
// skipped when disabled, and YouTube additionally requires an API key since
// the Data API rejects anonymous calls.
func BuildAdapters(cfg Config, creds Credentials, log *slog.Logger) []source.Adapter {
	if log == nil {
		log = slog.Default()
	}
	var adapters []source.Adapter

	if cfg.Sources.HackerNews.Enabled {
		adapters = append(adapters, source.NewHackerNews(source.HackerNewsConfig{
			TopN: cfg.Sources.HackerNews.TopN,
		}, log))
	}
	if cfg.Sources.Reddit.Enabled {
		adapters = append(adapters, source.NewReddit(source.RedditConfig{
			Subreddits:   cfg.Sources.Reddit.Subreddits,
			PostsPerSub:  cfg.Sources.Reddit.PostsPerSub,
			ClientID:     creds.RedditClientID,
			ClientSecret: creds.RedditClientSecret,
		}, log))
	}
	if cfg.Sources.GitHub.Enabled {
		adapters = append(adapters, source.NewGitHub(source.GitHubConfig{
			Languages: cfg.Sources.GitHub.Languages,
			Token:     creds.GitHubToken,
			PerPage:   cfg.Sources.GitHub.PerPage,
		}, log))
	}
	if cfg.Sources.YouTube.Enabled {
		if creds.YouTubeAPIKey == "" {
			log.Warn("youtube source enabled but YOUTUBE_API_KEY is unset, skipping")
		} else {
			adapters = append(adapters, source.NewYouTube(source.YouTubeConfig{
				APIKey:      creds.YouTubeAPIKey,
				SearchTerms: cfg.Sources.YouTube.SearchTerms,
				MaxPerTerm:  cfg.Sources.YouTube.MaxPerTerm,
			}, log))
		}
	}
	if cfg.Sources.News.Enabled {
		adapters = append(adapters, source.NewRSS(source.RSSConfig{
			Feeds:   cfg.Sources.News.Feeds,
			PerFeed: cfg.Sources.News.PerFeed,
		}, log))
	}
	return adapters
}
