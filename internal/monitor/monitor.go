package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/postwatch/postwatch/internal/fetch"
	"github.com/postwatch/postwatch/internal/metrics"
	"github.com/postwatch/postwatch/internal/models"
	"github.com/postwatch/postwatch/internal/notify"
)

// ErrCheckInProgress is returned when a cycle is requested while another one
// is still running.
var ErrCheckInProgress = errors.New("monitoring cycle already in progress")

// firstCheckWindow bounds post discovery for accounts that have never been
// checked, so registering an account does not replay its whole history.
const firstCheckWindow = 24 * time.Hour

// CycleResult summarizes one monitoring cycle.
type CycleResult struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Accounts   int           `json:"accounts"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	PostsFound int           `json:"posts_found"`
	Paused     int           `json:"paused"`
}

// Monitor runs the account checking pipeline: it selects due accounts,
// fetches their recent posts, persists new ones, fans out notifications and
// maintains per-account error state. At most one cycle runs at a time.
type Monitor struct {
	accounts   models.AccountRepository
	posts      models.PostRepository
	stats      models.StatsRepository
	router     *fetch.Router
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	collector  *metrics.PipelineCollector

	pauseThreshold int

	running sync.Mutex

	now func() time.Time
}

// NewMonitor creates a monitor. pauseThreshold is the consecutive-error
// count at which an account is paused.
func NewMonitor(
	accounts models.AccountRepository,
	posts models.PostRepository,
	stats models.StatsRepository,
	router *fetch.Router,
	dispatcher *notify.Dispatcher,
	pauseThreshold int,
	logger *slog.Logger,
	collector *metrics.PipelineCollector,
) *Monitor {
	if pauseThreshold <= 0 {
		pauseThreshold = 5
	}
	return &Monitor{
		accounts:       accounts,
		posts:          posts,
		stats:          stats,
		router:         router,
		dispatcher:     dispatcher,
		logger:         logger,
		collector:      collector,
		pauseThreshold: pauseThreshold,
		now:            time.Now,
	}
}

// InProgress reports whether a cycle is currently running.
func (m *Monitor) InProgress() bool {
	if m.running.TryLock() {
		m.running.Unlock()
		return false
	}
	return true
}

// RunCycle checks every due account once. Returns ErrCheckInProgress if a
// cycle is already running. Account failures are recorded on the account
// and never abort the cycle.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !m.running.TryLock() {
		return nil, ErrCheckInProgress
	}
	defer m.running.Unlock()

	start := m.now()
	result := &CycleResult{StartedAt: start}

	due, err := m.accounts.ListDue(start)
	if err != nil {
		return nil, fmt.Errorf("failed to list due accounts: %w", err)
	}
	result.Accounts = len(due)

	m.logger.Info("monitoring cycle started", "due_accounts", len(due))

	for _, account := range due {
		if ctx.Err() != nil {
			m.logger.Warn("monitoring cycle interrupted", "error", ctx.Err())
			break
		}

		found, err := m.checkAccount(ctx, account)
		result.PostsFound += found

		if m.collector != nil {
			m.collector.ObserveCheck(account.Platform, err == nil)
		}

		if err != nil {
			result.Failed++
			if m.handleCheckError(account, err) {
				result.Paused++
			}
			continue
		}
		result.Succeeded++
	}

	result.Duration = m.now().Sub(start)
	if m.collector != nil {
		m.collector.ObserveCycle(result.Duration)
	}

	m.logger.Info("monitoring cycle finished",
		"accounts", result.Accounts,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"posts_found", result.PostsFound,
		"paused", result.Paused,
		"duration", result.Duration,
	)

	return result, nil
}

// checkAccount fetches an account's recent posts, stores the new ones and
// dispatches notifications. Returns the number of newly discovered posts.
func (m *Monitor) checkAccount(ctx context.Context, account *models.MonitoredAccount) (int, error) {
	m.incrementStat(account, models.StatChecksPerformed, 1)

	fetcher, err := m.router.Get(account.Platform)
	if err != nil {
		return 0, err
	}

	query := fetch.PostQuery{SinceID: account.LastPostID}
	if query.SinceID == "" {
		query.SinceDate = m.now().Add(-firstCheckWindow)
	}

	fetched, err := fetcher.FetchRecentPosts(ctx, account.TargetAccountID, query)
	if err != nil {
		return 0, err
	}

	var found int

	// Newest first from the fetcher; walk oldest first so notifications go
	// out in publication order and the cursor lands on the newest post.
	for i := len(fetched) - 1; i >= 0; i-- {
		post := m.toDiscoveredPost(account, fetched[i])

		inserted, err := m.posts.InsertIfNew(post)
		if err != nil {
			m.logger.Error("failed to store discovered post",
				"account_id", account.ID,
				"platform_post_id", post.PlatformPostID,
				"error", err,
			)
			continue
		}
		if !inserted {
			continue
		}

		found++
		m.incrementStat(account, models.StatPostsFound, 1)
		if m.collector != nil {
			m.collector.ObservePostsDiscovered(account.Platform, 1)
		}
		m.logger.Info("new post discovered",
			"account_id", account.ID,
			"platform", account.Platform,
			"platform_post_id", post.PlatformPostID,
			"content_type", post.ContentType,
		)

		if m.dispatcher != nil {
			m.dispatcher.DispatchPost(ctx, account, post)
		}
	}

	var lastPostID, lastPostContent string
	if len(fetched) > 0 {
		lastPostID = fetched[0].ID
		lastPostContent = fetched[0].Content
	}
	if err := m.accounts.UpdateAfterCheck(account.ID, m.now(), lastPostID, lastPostContent); err != nil {
		return found, fmt.Errorf("failed to record check: %w", err)
	}

	return found, nil
}

// handleCheckError records a failed check and pauses the account once the
// consecutive-error threshold is reached. Reports whether it paused.
func (m *Monitor) handleCheckError(account *models.MonitoredAccount, checkErr error) bool {
	m.incrementStat(account, models.StatErrors, 1)

	count, err := m.accounts.RecordError(account.ID, checkErr.Error())
	if err != nil {
		m.logger.Error("failed to record check error",
			"account_id", account.ID,
			"error", err,
		)
		return false
	}

	m.logger.Warn("account check failed",
		"account_id", account.ID,
		"platform", account.Platform,
		"consecutive_errors", count,
		"error", checkErr,
	)

	if count < m.pauseThreshold {
		return false
	}

	if err := m.accounts.SetStatus(account.ID, models.AccountStatusPaused); err != nil {
		m.logger.Error("failed to pause account",
			"account_id", account.ID,
			"error", err,
		)
		return false
	}

	m.logger.Warn("account paused after repeated failures",
		"account_id", account.ID,
		"platform", account.Platform,
		"consecutive_errors", count,
	)
	return true
}

func (m *Monitor) toDiscoveredPost(account *models.MonitoredAccount, post models.FetchedPost) *models.DiscoveredPost {
	raw := make(map[string]any, len(post.Raw)+3)
	for k, v := range post.Raw {
		raw[k] = v
	}
	raw["like_count"] = post.LikeCount
	raw["share_count"] = post.ShareCount
	raw["comment_count"] = post.CommentCount

	return &models.DiscoveredPost{
		AccountID:      account.ID,
		Platform:       account.Platform,
		PlatformPostID: post.ID,
		URL:            post.URL,
		ContentType:    post.Type,
		Content:        post.Content,
		MediaURLs:      post.MediaURLs,
		PublishedAt:    post.PublishedAt,
		RawMetadata:    raw,
	}
}

func (m *Monitor) incrementStat(account *models.MonitoredAccount, field models.StatField, delta int64) {
	if m.stats == nil {
		return
	}
	date := m.now().Format("2006-01-02")
	if err := m.stats.Increment(account.UserID, account.Platform, date, field, delta); err != nil {
		m.logger.Error("failed to increment daily stat",
			"user_id", account.UserID,
			"field", field,
			"error", err,
		)
	}
}
