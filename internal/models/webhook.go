package models

import "time"

// WebhookProvider identifies the payload envelope a destination expects.
type WebhookProvider string

const (
	ProviderFeishu     WebhookProvider = "feishu"
	ProviderWechatWork WebhookProvider = "wechat_work"
	ProviderDingtalk   WebhookProvider = "dingtalk"
	ProviderCustom     WebhookProvider = "custom"
)

// WebhookDestination is a user-configured endpoint that receives new-post
// notifications. Its lifecycle is owned by the user-facing API; the
// dispatcher only reads it and updates the outcome counters.
type WebhookDestination struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Provider      WebhookProvider   `json:"provider"`
	URL           string            `json:"url"`
	Secret        string            `json:"secret,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Template      string            `json:"template,omitempty"`
	Active        bool              `json:"active"`
	SuccessCount  int64             `json:"success_count"`
	FailureCount  int64             `json:"failure_count"`
	LastSuccessAt *time.Time        `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time        `json:"last_failure_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// WebhookRepository defines persistence operations for webhook destinations.
type WebhookRepository interface {
	// Store creates or updates a destination.
	Store(dest *WebhookDestination) error

	// GetByID retrieves a destination by ID.
	GetByID(id string) (*WebhookDestination, error)

	// ListActive returns a user's active destinations.
	ListActive(userID string) ([]*WebhookDestination, error)

	// RecordOutcome updates delivery counters and timestamps for a
	// destination after an attempt.
	RecordOutcome(id string, success bool, errMessage string) error

	// Delete removes a destination.
	Delete(id string) error
}
