package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/abratronix/pulse/engine/feed"
)

func redditListingJSON(posts ...redditPost) redditListing {
	var l redditListing
	for _, p := range posts {
		l.Data.Children = append(l.Data.Children, struct {
			Data redditPost `json:"data"`
		}{Data: p})
	}
	return l
}

func TestRedditFetchPublic(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/golang/hot.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotUA = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(redditListingJSON(
			redditPost{ID: "aaa", Subreddit: "golang", Title: "Go 1.26 released", Author: "gopher",
				URL: "https://go.dev/blog", Score: 900, NumComments: 150, CreatedUTC: 1700000000,
				Thumbnail: "https://thumbs.example.com/a.png", LinkFlairText: "release"},
			redditPost{ID: "bbb", Subreddit: "golang", Title: "Pinned rules", Stickied: true, CreatedUTC: 1700000000},
			redditPost{ID: "ccc", Subreddit: "golang", Title: "Self post", SelfText: "question text",
				Permalink: "/r/golang/comments/ccc", Score: 12, NumComments: 4, CreatedUTC: 1700000500,
				Thumbnail: "self"},
		))
	}))
	t.Cleanup(srv.Close)

	r := NewReddit(RedditConfig{BaseURL: srv.URL, Subreddits: []string{"golang"}}, nil)
	got, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotUA == "" {
		t.Error("request sent without a User-Agent")
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2 (stickied skipped)", len(got))
	}

	link := got[0]
	if link.NativeID != "aaa" || link.URL != "https://go.dev/blog" {
		t.Errorf("link post wrong: %+v", link)
	}
	attrs := link.Attrs.(feed.RedditAttrs)
	if attrs.Thumbnail != "https://thumbs.example.com/a.png" || attrs.Flair != "release" {
		t.Errorf("attrs wrong: %+v", attrs)
	}

	self := got[1]
	if self.URL != redditPublicBaseURL+"/r/golang/comments/ccc" {
		t.Errorf("self post should fall back to permalink, got %s", self.URL)
	}
	if selfAttrs := self.Attrs.(feed.RedditAttrs); selfAttrs.Thumbnail != "" {
		t.Errorf("placeholder thumbnail should be dropped, got %q", selfAttrs.Thumbnail)
	}
}

func TestRedditFetchAuthenticated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			t.Errorf("bad basic auth: %s %s", user, pass)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	mux.HandleFunc("/r/rust/hot.json", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("missing bearer token, got %q", got)
		}
		json.NewEncoder(w).Encode(redditListingJSON(
			redditPost{ID: "xyz", Subreddit: "rust", Title: "Borrow checker tips", URL: "https://example.com", CreatedUTC: 1700000000},
		))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	r := NewReddit(RedditConfig{
		BaseURL:      srv.URL,
		AuthURL:      srv.URL + "/token",
		Subreddits:   []string{"rust"},
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, nil)

	got, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
}

func TestRedditFetchRefreshesTokenBetweenRuns(t *testing.T) {
	var mu sync.Mutex
	authCalls := 0
	validToken := ""

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		authCalls++
		validToken = fmt.Sprintf("tok-%d", authCalls)
		tok := validToken
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"access_token": tok})
	})
	mux.HandleFunc("/r/golang/hot.json", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ok := r.Header.Get("Authorization") == "Bearer "+validToken
		mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(redditListingJSON(
			redditPost{ID: "aaa", Subreddit: "golang", Title: "post", URL: "https://example.com", CreatedUTC: 1700000000},
		))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	r := NewReddit(RedditConfig{
		BaseURL:      srv.URL,
		AuthURL:      srv.URL + "/token",
		Subreddits:   []string{"golang"},
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	}, nil)

	first, err := r.Fetch(context.Background())
	if err != nil || len(first) != 1 {
		t.Fatalf("first fetch: %d candidates, err %v", len(first), err)
	}

	// Expire the first token server-side; only a newly issued one works.
	mu.Lock()
	validToken = "revoked"
	mu.Unlock()

	second, err := r.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("stale token reused, got %d candidates on second run", len(second))
	}
	mu.Lock()
	calls := authCalls
	mu.Unlock()
	if calls != 2 {
		t.Errorf("auth calls = %d, want one per fetch", calls)
	}
}
