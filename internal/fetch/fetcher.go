package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/postwatch/postwatch/internal/metrics"
	"github.com/postwatch/postwatch/internal/models"
)

// Fetcher retrieves profiles and posts for one platform by trying an ordered
// list of extraction strategies until one succeeds. Successful profile
// lookups are cached for a bounded TTL.
type Fetcher struct {
	platform   string
	strategies []Strategy
	cache      *ProfileCache
	session    *Session
	retry      RetryPolicy
	maxPages   int
	logger     *slog.Logger
	collector  *metrics.PipelineCollector
}

// Options configures a Fetcher.
type Options struct {
	Strategies []Strategy
	Cache      *ProfileCache
	Session    *Session
	Retry      RetryPolicy
	MaxPages   int
	Logger     *slog.Logger
	Collector  *metrics.PipelineCollector
}

// NewFetcher creates a fetcher for the given platform.
func NewFetcher(platform string, opts Options) (*Fetcher, error) {
	if len(opts.Strategies) == 0 {
		return nil, fmt.Errorf("platform %s: at least one strategy is required", platform)
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("platform %s: profile cache is required", platform)
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Fetcher{
		platform:   platform,
		strategies: opts.Strategies,
		cache:      opts.Cache,
		session:    opts.Session,
		retry:      opts.Retry,
		maxPages:   opts.MaxPages,
		logger:     opts.Logger.With("platform", platform),
		collector:  opts.Collector,
	}, nil
}

// Platform returns the platform name this fetcher serves.
func (f *Fetcher) Platform() string {
	return f.platform
}

// FetchProfile returns the account's profile, consulting the cache before
// any network strategy. Only if every strategy fails is an error returned;
// callers needing user-visible continuity should fall back to
// PlaceholderProfile.
func (f *Fetcher) FetchProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	if profile, ok := f.cache.Get(accountID); ok {
		return profile, nil
	}

	if f.session != nil {
		f.session.EnsureFresh(ctx)
	}

	var lastErr error
	for _, strategy := range f.strategies {
		var profile *models.Profile

		err := Retry(ctx, f.retry, func() error {
			var err error
			profile, err = strategy.FetchProfile(ctx, accountID)
			return err
		})
		if err != nil {
			lastErr = err
			f.logger.Warn("profile strategy failed",
				"strategy", strategy.Name(),
				"account_id", accountID,
				"error", err,
			)
			if f.collector != nil {
				f.collector.ObserveStrategyError(f.platform, strategy.Name())
			}
			continue
		}

		profile.AccountID = accountID
		f.cache.Put(accountID, *profile)

		f.logger.Debug("profile fetched",
			"strategy", strategy.Name(),
			"account_id", accountID,
			"username", profile.Username,
		)
		return profile, nil
	}

	return nil, fmt.Errorf("all strategies failed for %s/%s: %w", f.platform, accountID, lastErr)
}

// FetchRecentPosts retrieves the account's recent posts, newest first,
// bounded by the query and the fetcher's page cap. Pages are fetched until
// the since-id cursor or date window is reached, a page comes back empty,
// or the cap is hit.
func (f *Fetcher) FetchRecentPosts(ctx context.Context, accountID string, query PostQuery) ([]models.FetchedPost, error) {
	if f.session != nil {
		f.session.EnsureFresh(ctx)
	}

	var collected []models.FetchedPost

	for page := 1; page <= f.maxPages; page++ {
		posts, err := f.fetchPostsPage(ctx, accountID, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			// Later pages are best-effort; keep what we have.
			f.logger.Warn("pagination aborted",
				"account_id", accountID,
				"page", page,
				"error", err,
			)
			break
		}

		if len(posts) == 0 {
			break
		}

		kept, done := trimToQuery(posts, query)
		collected = append(collected, kept...)
		if done {
			break
		}
	}

	return collected, nil
}

// fetchPostsPage tries each strategy in order for a single page.
func (f *Fetcher) fetchPostsPage(ctx context.Context, accountID string, page int) ([]models.FetchedPost, error) {
	var lastErr error

	for _, strategy := range f.strategies {
		var posts []models.FetchedPost

		err := Retry(ctx, f.retry, func() error {
			var err error
			posts, err = strategy.FetchPosts(ctx, accountID, page)
			return err
		})
		if err != nil {
			lastErr = err
			f.logger.Warn("posts strategy failed",
				"strategy", strategy.Name(),
				"account_id", accountID,
				"page", page,
				"error", err,
			)
			if f.collector != nil {
				f.collector.ObserveStrategyError(f.platform, strategy.Name())
			}
			continue
		}

		return posts, nil
	}

	return nil, fmt.Errorf("all strategies failed for %s/%s page %d: %w", f.platform, accountID, page, lastErr)
}

// ClearCache drops the cached profile for an account, forcing the next
// lookup onto the network.
func (f *Fetcher) ClearCache(accountID string) {
	f.cache.Clear(accountID)
}

// trimToQuery filters a newest-first page against the query bounds and
// reports whether retrieval should stop.
func trimToQuery(posts []models.FetchedPost, query PostQuery) ([]models.FetchedPost, bool) {
	kept := make([]models.FetchedPost, 0, len(posts))

	for _, post := range posts {
		if query.SinceID != "" && post.ID == query.SinceID {
			return kept, true
		}
		if !query.SinceDate.IsZero() && post.PublishedAt.Before(query.SinceDate) {
			return kept, true
		}
		kept = append(kept, post)
	}

	return kept, false
}

// PlaceholderProfile derives a deterministic stand-in profile for accounts
// whose upstream data could not be fetched, so registration and tracking
// still work without usable upstream access.
func PlaceholderProfile(platform, accountID string) *models.Profile {
	sum := sha256.Sum256([]byte(platform + ":" + accountID))
	suffix := hex.EncodeToString(sum[:4])

	return &models.Profile{
		AccountID:   accountID,
		Username:    fmt.Sprintf("%s_user_%s", platform, suffix),
		DisplayName: fmt.Sprintf("%s user %s", platform, suffix),
		Placeholder: true,
	}
}
