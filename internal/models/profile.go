package models

import "time"

// Profile is the upstream-facing view of an account, as returned by a
// content fetch. Never persisted directly.
type Profile struct {
	AccountID     string `json:"account_id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Description   string `json:"description,omitempty"`
	FollowerCount int64  `json:"follower_count,omitempty"`

	// Placeholder marks a deterministically derived stand-in returned
	// when every extraction strategy failed.
	Placeholder bool `json:"placeholder,omitempty"`
}

// FetchedPost is a post as extracted from an upstream platform, prior to
// persistence as a DiscoveredPost.
type FetchedPost struct {
	ID           string         `json:"id"`
	URL          string         `json:"url,omitempty"`
	Content      string         `json:"content,omitempty"`
	Type         PostType       `json:"type"`
	MediaURLs    []string       `json:"media_urls,omitempty"`
	PublishedAt  time.Time      `json:"published_at"`
	LikeCount    int64          `json:"like_count,omitempty"`
	ShareCount   int64          `json:"share_count,omitempty"`
	CommentCount int64          `json:"comment_count,omitempty"`
	Raw          map[string]any `json:"raw,omitempty"`
}
