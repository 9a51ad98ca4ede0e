package fetch

import (
	"context"
	"time"

	"github.com/postwatch/postwatch/internal/models"
)

// Strategy is one concrete technique for extracting data from an upstream
// platform: a specific API endpoint, a page scrape, an alternate network
// path. Strategies return classified errors so the fetcher can distinguish
// retryable conditions from dead ends.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// FetchProfile retrieves the account's profile metadata.
	FetchProfile(ctx context.Context, accountID string) (*models.Profile, error)

	// FetchPosts retrieves one page of the account's recent posts, newest
	// first. Page numbering starts at 1.
	FetchPosts(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error)
}

// PostQuery bounds a recent-posts retrieval. Zero values mean unbounded;
// the fetcher's page cap always applies.
type PostQuery struct {
	// SinceID stops retrieval once this post ID is reached. The post with
	// this ID is excluded from the result.
	SinceID string

	// SinceDate stops retrieval once a page's oldest post predates it.
	// Posts older than SinceDate are excluded from the result.
	SinceDate time.Time
}
