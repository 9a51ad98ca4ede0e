package api

import (
	"log/slog"
	"net/http"

	"github.com/postwatch/postwatch/internal/fetch"
	"github.com/postwatch/postwatch/internal/metrics"
	"github.com/postwatch/postwatch/internal/models"
	"github.com/postwatch/postwatch/internal/scheduler"
)

// SetupRoutes configures all API routes on the mux.
func SetupRoutes(
	mux *http.ServeMux,
	accounts models.AccountRepository,
	posts models.PostRepository,
	webhooks models.WebhookRepository,
	stats models.StatsRepository,
	fetchRouter *fetch.Router,
	sched *scheduler.Scheduler,
	collector *metrics.PipelineCollector,
	logger *slog.Logger,
) {
	accountsHandler := NewAccountsHandler(accounts, posts, fetchRouter, logger)
	webhooksHandler := NewWebhooksHandler(webhooks, logger)
	monitorHandler := NewMonitorHandler(sched, stats, logger)

	instrument := func(h http.HandlerFunc) http.Handler {
		if collector == nil {
			return h
		}
		return collector.InstrumentHandler(h)
	}

	mux.Handle("/healthz", instrument(monitorHandler.HealthHandler))
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}

	mux.Handle("/api/accounts", instrument(accountsHandler.HandleAccounts))
	mux.Handle("/api/accounts/", instrument(accountsHandler.HandleAccountByID))

	mux.Handle("/api/webhooks", instrument(webhooksHandler.HandleWebhooks))
	mux.Handle("/api/webhooks/", instrument(webhooksHandler.HandleWebhookByID))

	mux.Handle("/api/monitor/trigger", instrument(monitorHandler.TriggerHandler))
	mux.Handle("/api/monitor/status", instrument(monitorHandler.StatusHandler))
	mux.Handle("/api/monitor/scheduler/", instrument(monitorHandler.SchedulerControlHandler))

	mux.Handle("/api/stats", instrument(monitorHandler.StatsHandler))
}
