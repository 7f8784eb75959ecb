package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/abratronix/pulse/engine/feed"
)

// RSSConfig configures the syndication-feed adapter.
type RSSConfig struct {
	Feeds   []string
	PerFeed int
}

// RSS fetches tech news entries from the configured RSS/Atom feeds.
// Feeds carry no engagement signals; scoring leans on recency and weight.
type RSS struct {
	cfg     RSSConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewRSS creates the adapter with defaults filled in.
func NewRSS(cfg RSSConfig, log *slog.Logger) *RSS {
	if cfg.PerFeed <= 0 {
		cfg.PerFeed = 15
	}
	if log == nil {
		log = slog.Default()
	}
	return &RSS{
		cfg:     cfg,
		client:  newHTTPClient(),
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
		log:     log,
	}
}

func (r *RSS) Name() feed.Source { return feed.SourceNews }

// Fetch parses every configured feed. A failing feed is logged and skipped.
func (r *RSS) Fetch(ctx context.Context) ([]Candidate, error) {
	var out []Candidate
	for _, feedURL := range r.cfg.Feeds {
		entries, err := r.fetchFeed(ctx, feedURL)
		if err != nil {
			r.log.Warn("rss: feed fetch failed", "feed", feedURL, "error", err)
			continue
		}
		out = append(out, entries...)
	}
	return out, nil
}

func (r *RSS) fetchFeed(ctx context.Context, feedURL string) ([]Candidate, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d from %s", resp.StatusCode, feedURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return r.parseFeed(body, feedURL)
}

// rssDoc covers RSS 2.0 documents.
type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	Link      string `xml:"link"`
	Author    string `xml:"author"`
	DCCreator string `xml:"creator"`
	PubDate   string `xml:"pubDate"`
	Desc      string `xml:"description"`
}

// atomDoc covers Atom documents (e.g. The Verge).
type atomDoc struct {
	XMLName xml.Name `xml:"feed"`
	Title   string   `xml:"title"`
	Entries []struct {
		Title string `xml:"title"`
		Links []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
		Author struct {
			Name string `xml:"name"`
		} `xml:"author"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
		Summary   string `xml:"summary"`
		Content   string `xml:"content"`
	} `xml:"entry"`
}

func (r *RSS) parseFeed(data []byte, feedURL string) ([]Candidate, error) {
	var doc rssDoc
	if err := xml.Unmarshal(data, &doc); err == nil && len(doc.Channel.Items) > 0 {
		items := doc.Channel.Items
		if len(items) > r.cfg.PerFeed {
			items = items[:r.cfg.PerFeed]
		}
		out := make([]Candidate, 0, len(items))
		for _, it := range items {
			author := it.DCCreator
			if author == "" {
				author = it.Author
			}
			if author == "" {
				author = doc.Channel.Title
			}
			out = append(out, Candidate{
				Source:      feed.SourceNews,
				NativeID:    it.Link,
				Kind:        "article",
				Title:       it.Title,
				Summary:     it.Desc,
				URL:         it.Link,
				Author:      author,
				PublishedAt: parsePubDate(it.PubDate),
				Attrs:       feed.NewsAttrs{FeedTitle: doc.Channel.Title, FeedURL: feedURL},
			})
		}
		return out, nil
	}

	var atom atomDoc
	if err := xml.Unmarshal(data, &atom); err != nil || len(atom.Entries) == 0 {
		return nil, fmt.Errorf("unrecognized feed format at %s", feedURL)
	}
	entries := atom.Entries
	if len(entries) > r.cfg.PerFeed {
		entries = entries[:r.cfg.PerFeed]
	}
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		link := ""
		for _, l := range e.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		published := e.Published
		if published == "" {
			published = e.Updated
		}
		summary := e.Summary
		if summary == "" {
			summary = e.Content
		}
		author := e.Author.Name
		if author == "" {
			author = atom.Title
		}
		out = append(out, Candidate{
			Source:      feed.SourceNews,
			NativeID:    link,
			Kind:        "article",
			Title:       e.Title,
			Summary:     summary,
			URL:         link,
			Author:      author,
			PublishedAt: parsePubDate(published),
			Attrs:       feed.NewsAttrs{FeedTitle: atom.Title, FeedURL: feedURL},
		})
	}
	return out, nil
}

// parsePubDate tries the date formats seen across real-world feeds.
func parsePubDate(s string) time.Time {
	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
