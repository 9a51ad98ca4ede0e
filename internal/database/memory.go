package database

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/postwatch/postwatch/internal/models"
)

// MemoryAccountRepository implements an in-memory account repository for
// testing and development.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]models.MonitoredAccount
}

// NewMemoryAccountRepository creates a new in-memory account repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]models.MonitoredAccount)}
}

func (r *MemoryAccountRepository) Store(account *models.MonitoredAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryAccountRepository) GetByID(id string) (*models.MonitoredAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (r *MemoryAccountRepository) ListDue(now time.Time) ([]*models.MonitoredAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.MonitoredAccount
	for id := range r.accounts {
		account := r.accounts[id]
		if account.Due(now) {
			due = append(due, &account)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i].LastCheckAt, due[j].LastCheckAt
		if a == nil {
			return true
		}
		if b == nil {
			return false
		}
		return a.Before(*b)
	})
	return due, nil
}

func (r *MemoryAccountRepository) ListByUser(userID string) ([]*models.MonitoredAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var accounts []*models.MonitoredAccount
	for id := range r.accounts {
		account := r.accounts[id]
		if account.UserID == userID {
			accounts = append(accounts, &account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (r *MemoryAccountRepository) UpdateAfterCheck(id string, checkedAt time.Time, lastPostID, lastPostContent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %s", id)
	}
	account.LastCheckAt = &checkedAt
	if lastPostID != "" {
		account.LastPostID = lastPostID
		account.LastPostContent = lastPostContent
	}
	account.ConsecutiveErrors = 0
	account.LastError = ""
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

func (r *MemoryAccountRepository) RecordError(id, message string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return 0, fmt.Errorf("account not found: %s", id)
	}
	account.ConsecutiveErrors++
	account.LastError = message
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return account.ConsecutiveErrors, nil
}

func (r *MemoryAccountRepository) SetStatus(id string, status models.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %s", id)
	}
	account.Status = status
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

func (r *MemoryAccountRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, id)
	return nil
}

// MemoryPostRepository implements an in-memory post repository for testing
// and development.
type MemoryPostRepository struct {
	mu          sync.Mutex
	posts       map[string]models.DiscoveredPost
	platformIdx map[string]string // platform + "\x00" + platform_post_id -> ID
}

// NewMemoryPostRepository creates a new in-memory post repository.
func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{
		posts:       make(map[string]models.DiscoveredPost),
		platformIdx: make(map[string]string),
	}
}

func platformKey(platform, platformPostID string) string {
	return platform + "\x00" + platformPostID
}

func (r *MemoryPostRepository) InsertIfNew(post *models.DiscoveredPost) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := platformKey(post.Platform, post.PlatformPostID)
	if _, exists := r.platformIdx[key]; exists {
		return false, nil
	}
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	r.posts[post.ID] = *post
	r.platformIdx[key] = post.ID
	return true, nil
}

func (r *MemoryPostRepository) GetByPlatformID(platform, platformPostID string) (*models.DiscoveredPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.platformIdx[platformKey(platform, platformPostID)]
	if !ok {
		return nil, nil
	}
	post := r.posts[id]
	return &post, nil
}

func (r *MemoryPostRepository) ListByAccount(accountID string, limit int) ([]*models.DiscoveredPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var posts []*models.DiscoveredPost
	for id := range r.posts {
		post := r.posts[id]
		if post.AccountID == accountID {
			posts = append(posts, &post)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].PublishedAt.After(posts[j].PublishedAt)
	})
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (r *MemoryPostRepository) MarkNotified(id string, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok {
		return fmt.Errorf("post not found: %s", id)
	}
	post.Notified = true
	post.NotifyError = errMessage
	r.posts[id] = post
	return nil
}

// MemoryWebhookRepository implements an in-memory webhook destination
// repository for testing and development.
type MemoryWebhookRepository struct {
	mu       sync.Mutex
	webhooks map[string]models.WebhookDestination
}

// NewMemoryWebhookRepository creates a new in-memory webhook repository.
func NewMemoryWebhookRepository() *MemoryWebhookRepository {
	return &MemoryWebhookRepository{webhooks: make(map[string]models.WebhookDestination)}
}

func (r *MemoryWebhookRepository) Store(dest *models.WebhookDestination) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dest.ID == "" {
		dest.ID = uuid.New().String()
	}
	now := time.Now()
	if dest.CreatedAt.IsZero() {
		dest.CreatedAt = now
	}
	dest.UpdatedAt = now
	r.webhooks[dest.ID] = *dest
	return nil
}

func (r *MemoryWebhookRepository) GetByID(id string) (*models.WebhookDestination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dest, ok := r.webhooks[id]
	if !ok {
		return nil, nil
	}
	return &dest, nil
}

func (r *MemoryWebhookRepository) ListActive(userID string) ([]*models.WebhookDestination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dests []*models.WebhookDestination
	for id := range r.webhooks {
		dest := r.webhooks[id]
		if dest.UserID == userID && dest.Active {
			dests = append(dests, &dest)
		}
	}
	sort.Slice(dests, func(i, j int) bool {
		return dests[i].CreatedAt.Before(dests[j].CreatedAt)
	})
	return dests, nil
}

func (r *MemoryWebhookRepository) RecordOutcome(id string, success bool, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dest, ok := r.webhooks[id]
	if !ok {
		return fmt.Errorf("webhook destination not found: %s", id)
	}
	now := time.Now()
	if success {
		dest.SuccessCount++
		dest.LastSuccessAt = &now
	} else {
		dest.FailureCount++
		dest.LastFailureAt = &now
	}
	dest.UpdatedAt = now
	r.webhooks[id] = dest
	return nil
}

func (r *MemoryWebhookRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.webhooks, id)
	return nil
}

// MemoryStatsRepository implements an in-memory daily stats repository for
// testing and development.
type MemoryStatsRepository struct {
	mu    sync.Mutex
	stats map[string]models.DailyStat
}

// NewMemoryStatsRepository creates a new in-memory stats repository.
func NewMemoryStatsRepository() *MemoryStatsRepository {
	return &MemoryStatsRepository{stats: make(map[string]models.DailyStat)}
}

func statKey(userID, platform, date string) string {
	return userID + "\x00" + platform + "\x00" + date
}

func (r *MemoryStatsRepository) Increment(userID, platform, date string, field models.StatField, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := statKey(userID, platform, date)
	stat, ok := r.stats[key]
	if !ok {
		stat = models.DailyStat{UserID: userID, Platform: platform, Date: date}
	}
	switch field {
	case models.StatChecksPerformed:
		stat.ChecksPerformed += delta
	case models.StatPostsFound:
		stat.PostsFound += delta
	case models.StatNotificationsSent:
		stat.NotificationsSent += delta
	case models.StatErrors:
		stat.Errors += delta
	default:
		return fmt.Errorf("unknown stat field: %s", field)
	}
	r.stats[key] = stat
	return nil
}

func (r *MemoryStatsRepository) Get(userID, platform, date string) (*models.DailyStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stat, ok := r.stats[statKey(userID, platform, date)]
	if !ok {
		return nil, nil
	}
	return &stat, nil
}
