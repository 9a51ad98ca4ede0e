package models

import "time"

// DiscoveredPost is a post found on a monitored account. It is inserted once
// per (platform, platform_post_id) pair and immutable afterwards except for
// notification bookkeeping.
type DiscoveredPost struct {
	ID             string         `json:"id"`
	AccountID      string         `json:"account_id"`
	Platform       string         `json:"platform"`
	PlatformPostID string         `json:"platform_post_id"`
	URL            string         `json:"url,omitempty"`
	ContentType    PostType       `json:"content_type"`
	Content        string         `json:"content,omitempty"`
	MediaURLs      []string       `json:"media_urls,omitempty"`
	PublishedAt    time.Time      `json:"published_at"`
	RawMetadata    map[string]any `json:"raw_metadata,omitempty"`
	Notified       bool           `json:"notified"`
	NotifyError    string         `json:"notify_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// PostType categorizes the media composition of a post.
type PostType string

const (
	PostTypeText  PostType = "text"
	PostTypeImage PostType = "image"
	PostTypeVideo PostType = "video"
	PostTypeMixed PostType = "mixed"
)

// PostRepository defines persistence operations for discovered posts.
type PostRepository interface {
	// InsertIfNew stores the post unless one with the same
	// (platform, platform_post_id) already exists. Reports whether an
	// insert happened; an existing row is left untouched.
	InsertIfNew(post *DiscoveredPost) (bool, error)

	// GetByPlatformID retrieves a post by its platform-scoped identifier.
	GetByPlatformID(platform, platformPostID string) (*DiscoveredPost, error)

	// ListByAccount returns the most recent posts for an account.
	ListByAccount(accountID string, limit int) ([]*DiscoveredPost, error)

	// MarkNotified records the outcome of notification fan-out for a post.
	// An empty errMessage means every delivery succeeded.
	MarkNotified(id string, errMessage string) error
}
