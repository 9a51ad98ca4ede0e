package models

import "time"

// MonitoredAccount represents a social media account being watched for new posts.
type MonitoredAccount struct {
	ID                   string        `json:"id"`
	UserID               string        `json:"user_id"`
	Platform             string        `json:"platform"` // weibo, douyin
	TargetAccountID      string        `json:"target_account_id"`
	TargetUsername       string        `json:"target_username,omitempty"`
	Status               AccountStatus `json:"status"`
	CheckIntervalMinutes int           `json:"check_interval_minutes"`
	LastCheckAt          *time.Time    `json:"last_check_at,omitempty"`
	LastPostID           string        `json:"last_post_id,omitempty"`
	LastPostContent      string        `json:"last_post_content,omitempty"`
	ConsecutiveErrors    int           `json:"consecutive_errors"`
	LastError            string        `json:"last_error,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// AccountStatus describes whether an account participates in scheduling.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusPaused  AccountStatus = "paused"
	AccountStatusStopped AccountStatus = "stopped"
)

// CheckInterval returns the configured check interval as a duration.
func (a *MonitoredAccount) CheckInterval() time.Duration {
	return time.Duration(a.CheckIntervalMinutes) * time.Minute
}

// Due reports whether the account should be checked at the given time.
func (a *MonitoredAccount) Due(now time.Time) bool {
	if a.Status != AccountStatusActive {
		return false
	}
	if a.LastCheckAt == nil {
		return true
	}
	return now.Sub(*a.LastCheckAt) >= a.CheckInterval()
}

// AccountRepository defines persistence operations for monitored accounts.
type AccountRepository interface {
	// Store creates or updates a monitored account.
	Store(account *MonitoredAccount) error

	// GetByID retrieves an account by ID.
	GetByID(id string) (*MonitoredAccount, error)

	// ListDue returns active accounts whose check interval has elapsed.
	ListDue(now time.Time) ([]*MonitoredAccount, error)

	// ListByUser returns all accounts owned by a user.
	ListByUser(userID string) ([]*MonitoredAccount, error)

	// UpdateAfterCheck records a successful check, resetting error state.
	UpdateAfterCheck(id string, checkedAt time.Time, lastPostID, lastPostContent string) error

	// RecordError increments the consecutive error counter and stores the
	// message, returning the new counter value.
	RecordError(id, message string) (int, error)

	// SetStatus transitions the account to the given status.
	SetStatus(id string, status AccountStatus) error

	// Delete removes a monitored account.
	Delete(id string) error
}
