package models

// DailyStat aggregates monitoring activity per (user, platform, day).
type DailyStat struct {
	UserID            string `json:"user_id"`
	Platform          string `json:"platform"`
	Date              string `json:"date"` // YYYY-MM-DD
	ChecksPerformed   int64  `json:"checks_performed"`
	PostsFound        int64  `json:"posts_found"`
	NotificationsSent int64  `json:"notifications_sent"`
	Errors            int64  `json:"errors"`
}

// StatField names a DailyStat counter for atomic increments.
type StatField string

const (
	StatChecksPerformed   StatField = "checks_performed"
	StatPostsFound        StatField = "posts_found"
	StatNotificationsSent StatField = "notifications_sent"
	StatErrors            StatField = "errors"
)

// StatsRepository defines persistence operations for daily statistics.
type StatsRepository interface {
	// Increment adds delta to one counter of the (user, platform, date)
	// row, creating the row if it does not exist.
	Increment(userID, platform, date string, field StatField, delta int64) error

	// Get retrieves a single day's row, or nil if none exists.
	Get(userID, platform, date string) (*DailyStat, error)
}
