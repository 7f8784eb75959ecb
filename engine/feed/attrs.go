package feed

import (
	"encoding/json"
	"fmt"
)

// Attributes is the source-specific metadata bag attached to an Item. It is
// a tagged union keyed by the item's Source: each variant declares its own
// known fields instead of an untyped map. On the wire it appears as the
// flat "meta" object.
type Attributes interface {
	attrs()
}

// HackerNewsAttrs holds story metadata from the Hacker News item API.
type HackerNewsAttrs struct {
	StoryID     int64  `json:"hn_id"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	StoryType   string `json:"story_type"`
}

// RedditAttrs holds post metadata from the Reddit listing API.
type RedditAttrs struct {
	Subreddit   string `json:"subreddit"`
	Score       int    `json:"score"`
	NumComments int    `json:"num_comments"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Flair       string `json:"flair,omitempty"`
}

// GitHubAttrs holds repository metadata from the GitHub search API.
type GitHubAttrs struct {
	Stars    int      `json:"stars"`
	Forks    int      `json:"forks"`
	Language string   `json:"language,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	FullName string   `json:"full_name"`
}

// YouTubeAttrs holds video metadata from the YouTube Data API.
type YouTubeAttrs struct {
	VideoID      string `json:"video_id"`
	ChannelID    string `json:"channel_id,omitempty"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	Duration     string `json:"duration,omitempty"`
	ViewCount    int64  `json:"view_count"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
}

// NewsAttrs holds entry metadata from a syndication feed.
type NewsAttrs struct {
	FeedTitle string `json:"feed_title,omitempty"`
	FeedURL   string `json:"feed_url"`
}

func (HackerNewsAttrs) attrs() {}
func (RedditAttrs) attrs()     {}
func (GitHubAttrs) attrs()     {}
func (YouTubeAttrs) attrs()    {}
func (NewsAttrs) attrs()       {}

// unmarshalAttrs decodes the "meta" object into the variant for src.
func unmarshalAttrs(src Source, meta json.RawMessage) (Attributes, error) {
	switch src {
	case SourceHackerNews:
		var a HackerNewsAttrs
		if err := json.Unmarshal(meta, &a); err != nil {
			return nil, fmt.Errorf("hackernews meta: %w", err)
		}
		return a, nil
	case SourceReddit:
		var a RedditAttrs
		if err := json.Unmarshal(meta, &a); err != nil {
			return nil, fmt.Errorf("reddit meta: %w", err)
		}
		return a, nil
	case SourceGitHub:
		var a GitHubAttrs
		if err := json.Unmarshal(meta, &a); err != nil {
			return nil, fmt.Errorf("github meta: %w", err)
		}
		return a, nil
	case SourceYouTube:
		var a YouTubeAttrs
		if err := json.Unmarshal(meta, &a); err != nil {
			return nil, fmt.Errorf("youtube meta: %w", err)
		}
		return a, nil
	case SourceNews:
		var a NewsAttrs
		if err := json.Unmarshal(meta, &a); err != nil {
			return nil, fmt.Errorf("news meta: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("meta for unknown source %q", src)
	}
}
