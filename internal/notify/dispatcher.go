package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/postwatch/postwatch/internal/metrics"
	"github.com/postwatch/postwatch/internal/models"
)

// DeliveryResult is the outcome of one webhook delivery attempt.
type DeliveryResult struct {
	DestinationID string
	Provider      models.WebhookProvider
	Success       bool
	StatusCode    int
	Error         string
	Duration      time.Duration
}

// Dispatcher renders and delivers new-post notifications to a user's webhook
// destinations. Delivery is best-effort: one bounded attempt per
// destination, outcomes recorded, never retried.
type Dispatcher struct {
	webhooks  models.WebhookRepository
	posts     models.PostRepository
	stats     models.StatsRepository
	client    *http.Client
	logger    *slog.Logger
	collector *metrics.PipelineCollector
}

// NewDispatcher creates a dispatcher delivering with the given timeout.
func NewDispatcher(
	webhooks models.WebhookRepository,
	posts models.PostRepository,
	stats models.StatsRepository,
	timeout time.Duration,
	logger *slog.Logger,
	collector *metrics.PipelineCollector,
) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		webhooks:  webhooks,
		posts:     posts,
		stats:     stats,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		collector: collector,
	}
}

// Notify performs a single delivery attempt to one destination.
func (d *Dispatcher) Notify(ctx context.Context, dest *models.WebhookDestination, account *models.MonitoredAccount, post *models.DiscoveredPost) DeliveryResult {
	result := DeliveryResult{
		DestinationID: dest.ID,
		Provider:      dest.Provider,
	}

	payload, err := BuildPayload(dest, account, post)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(payload))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	req.Header.Set("Content-Type", "application/json")
	for name, value := range dest.Headers {
		req.Header.Set(name, value)
	}
	if dest.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(dest.Secret, payload))
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		result.Error = fmt.Sprintf("endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return result
	}

	result.Success = true
	return result
}

// DispatchPost fans a newly discovered post out to every active destination
// of the owning user. Destinations are attempted independently; the post is
// marked notified regardless of delivery outcomes, with the first failure
// recorded on it.
func (d *Dispatcher) DispatchPost(ctx context.Context, account *models.MonitoredAccount, post *models.DiscoveredPost) (delivered, failed int) {
	destinations, err := d.webhooks.ListActive(account.UserID)
	if err != nil {
		d.logger.Error("failed to list webhook destinations",
			"user_id", account.UserID,
			"error", err,
		)
		// Leave the post un-notified so a later cycle can try again.
		return 0, 0
	}

	var firstError string

	for _, dest := range destinations {
		result := d.Notify(ctx, dest, account, post)

		if d.collector != nil {
			d.collector.ObserveDelivery(string(dest.Provider), result.Success)
		}

		if err := d.webhooks.RecordOutcome(dest.ID, result.Success, result.Error); err != nil {
			d.logger.Error("failed to record webhook outcome",
				"destination_id", dest.ID,
				"error", err,
			)
		}

		if result.Success {
			delivered++
			d.incrementStat(account, models.StatNotificationsSent)
			d.logger.Info("notification delivered",
				"destination_id", dest.ID,
				"provider", dest.Provider,
				"post_id", post.PlatformPostID,
				"duration", result.Duration,
			)
		} else {
			failed++
			if firstError == "" {
				firstError = result.Error
			}
			d.logger.Warn("notification delivery failed",
				"destination_id", dest.ID,
				"provider", dest.Provider,
				"post_id", post.PlatformPostID,
				"error", result.Error,
			)
		}
	}

	if err := d.posts.MarkNotified(post.ID, firstError); err != nil {
		d.logger.Error("failed to mark post notified",
			"post_id", post.ID,
			"error", err,
		)
	}

	return delivered, failed
}

func (d *Dispatcher) incrementStat(account *models.MonitoredAccount, field models.StatField) {
	if d.stats == nil {
		return
	}
	date := time.Now().Format("2006-01-02")
	if err := d.stats.Increment(account.UserID, account.Platform, date, field, 1); err != nil {
		d.logger.Error("failed to increment daily stat",
			"user_id", account.UserID,
			"field", field,
			"error", err,
		)
	}
}
