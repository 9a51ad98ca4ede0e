package api

import (
	"fmt"
	"net/url"

	"github.com/postwatch/postwatch/internal/models"
)

// ValidationError represents a request validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateAccountRequest checks an account create/update request.
func ValidateAccountRequest(req *AccountRequest, platforms []string) error {
	if req.UserID == "" {
		return ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if req.TargetAccountID == "" {
		return ValidationError{Field: "target_account_id", Message: "target account ID is required"}
	}

	supported := false
	for _, p := range platforms {
		if req.Platform == p {
			supported = true
			break
		}
	}
	if !supported {
		return ValidationError{Field: "platform", Message: fmt.Sprintf("unsupported platform %q", req.Platform)}
	}

	if req.CheckIntervalMinutes < 0 {
		return ValidationError{Field: "check_interval_minutes", Message: "check interval must be positive"}
	}
	return nil
}

// ValidateWebhookRequest checks a webhook destination create request.
func ValidateWebhookRequest(req *WebhookRequest) error {
	if req.UserID == "" {
		return ValidationError{Field: "user_id", Message: "user ID is required"}
	}

	switch models.WebhookProvider(req.Provider) {
	case models.ProviderFeishu, models.ProviderWechatWork, models.ProviderDingtalk, models.ProviderCustom:
	default:
		return ValidationError{Field: "provider", Message: fmt.Sprintf("unknown provider %q", req.Provider)}
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ValidationError{Field: "url", Message: "a valid absolute URL is required"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ValidationError{Field: "url", Message: "URL scheme must be http or https"}
	}
	return nil
}
