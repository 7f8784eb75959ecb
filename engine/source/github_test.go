package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abratronix/pulse/engine/feed"
)

const githubSearchBody = `{
  "items": [
    {
      "full_name": "acme/fastdb",
      "description": "An embedded database",
      "html_url": "https://github.com/acme/fastdb",
      "stargazers_count": 420,
      "forks_count": 31,
      "language": "Go",
      "topics": ["database", "embedded", "go", "kv", "storage", "extra"],
      "created_at": "2026-08-28T10:00:00Z",
      "owner": {"login": "acme"}
    },
    {
      "full_name": "acme/nodesc",
      "description": "",
      "html_url": "https://github.com/acme/nodesc",
      "stargazers_count": 55,
      "forks_count": 2,
      "created_at": "not-a-date",
      "owner": {"login": "acme"}
    }
  ]
}`

func TestGitHubFetch(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/repositories" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("q")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(githubSearchBody))
	}))
	t.Cleanup(srv.Close)

	g := NewGitHub(GitHubConfig{BaseURL: srv.URL, Languages: []string{"go"}, Token: "gh-token"}, nil)
	fixed := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	got, err := g.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if !strings.Contains(gotQuery, "created:>2026-08-25") || !strings.Contains(gotQuery, "language:go") {
		t.Errorf("search query wrong: %q", gotQuery)
	}
	if gotAuth != "Bearer gh-token" {
		t.Errorf("token not sent: %q", gotAuth)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}

	repo := got[0]
	if repo.NativeID != "acme/fastdb" || repo.Title != "acme/fastdb - An embedded database" {
		t.Errorf("repo fields wrong: %+v", repo)
	}
	if repo.Engagement != 420 || repo.Comments != 31 {
		t.Errorf("signals wrong: %+v", repo)
	}
	attrs := repo.Attrs.(feed.GitHubAttrs)
	if len(attrs.Topics) != 5 {
		t.Errorf("topics should cap at 5, got %d", len(attrs.Topics))
	}

	noDesc := got[1]
	if noDesc.Title != "acme/nodesc - No description" {
		t.Errorf("missing description fallback wrong: %q", noDesc.Title)
	}
	if !noDesc.PublishedAt.Equal(fixed) {
		t.Errorf("unparseable created_at should fall back to now, got %v", noDesc.PublishedAt)
	}
}
