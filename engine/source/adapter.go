// Package source contains the adapters that fetch raw candidates from the
// external content platforms. Adapters are polymorphic over one capability,
// fetching a batch of candidates within a bounded time, and are selected by
// configuration. An adapter failure never aborts a run; the runner converts
// it into an empty contribution.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/abratronix/pulse/engine/feed"
	"github.com/abratronix/pulse/pkg/fn"
)

// Candidate is a raw item as fetched from one source, before normalization.
// Summary may still contain HTML; Engagement and Comments carry the raw
// popularity signals the score engine will normalize.
type Candidate struct {
	Source      feed.Source
	NativeID    string
	Kind        string
	Title       string
	Summary     string
	URL         string
	Author      string
	PublishedAt time.Time
	Engagement  float64
	Comments    float64
	Attrs       feed.Attributes
}

// Adapter fetches a batch of candidates from one external source.
type Adapter interface {
	Name() feed.Source
	Fetch(ctx context.Context) ([]Candidate, error)
}

const defaultHTTPTimeout = 15 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// getJSON performs a GET and decodes the JSON body into T. Rate-limit and
// server-side statuses are returned as errors so fn.Retry can back off.
func getJSON[T any](ctx context.Context, client *http.Client, url string, header http.Header) fn.Result[T] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fn.Err[T](err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fn.Err[T](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fn.Errf[T]("http %d from %s", resp.StatusCode, url)
	}
	if resp.StatusCode != http.StatusOK {
		return fn.Errf[T]("unexpected status %d from %s", resp.StatusCode, url)
	}

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return fn.Err[T](fmt.Errorf("decode %s: %w", url, err))
	}
	return fn.Ok(v)
}
