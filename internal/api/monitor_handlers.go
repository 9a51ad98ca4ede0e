package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/postwatch/postwatch/internal/models"
	"github.com/postwatch/postwatch/internal/monitor"
	"github.com/postwatch/postwatch/internal/scheduler"
)

// MonitorHandler serves pipeline control endpoints: manual triggers,
// scheduler control and daily statistics.
type MonitorHandler struct {
	scheduler *scheduler.Scheduler
	stats     models.StatsRepository
	logger    *slog.Logger
	startTime time.Time
}

func NewMonitorHandler(sched *scheduler.Scheduler, stats models.StatsRepository, logger *slog.Logger) *MonitorHandler {
	return &MonitorHandler{
		scheduler: sched,
		stats:     stats,
		logger:    logger,
		startTime: time.Now(),
	}
}

// HealthHandler handles GET /healthz.
func (h *MonitorHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	})
}

// TriggerHandler handles POST /api/monitor/trigger. Returns 409 when a
// cycle is already running.
func (h *MonitorHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.scheduler.TriggerManual(r.Context())
	if err != nil {
		if errors.Is(err, monitor.ErrCheckInProgress) {
			http.Error(w, "A monitoring cycle is already in progress", http.StatusConflict)
			return
		}
		h.logger.Error("manual cycle failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// StatusHandler handles GET /api/monitor/status.
func (h *MonitorHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// SchedulerControlHandler handles POST /api/monitor/scheduler/{start,stop}.
func (h *MonitorHandler) SchedulerControlHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/api/monitor/scheduler/start":
		// Not the request context: it is cancelled when this response is
		// written, and the scheduler outlives the request.
		if err := h.scheduler.Start(context.Background()); err != nil {
			h.logger.Error("failed to start scheduler", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	case "/api/monitor/scheduler/stop":
		h.scheduler.Stop()
	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// StatsHandler handles GET /api/stats?user_id=&platform=&date=.
func (h *MonitorHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	userID := query.Get("user_id")
	platform := query.Get("platform")
	if userID == "" || platform == "" {
		http.Error(w, "user_id and platform query parameters required", http.StatusBadRequest)
		return
	}

	date := query.Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	stat, err := h.stats.Get(userID, platform, date)
	if err != nil {
		h.logger.Error("failed to get daily stats", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if stat == nil {
		stat = &models.DailyStat{UserID: userID, Platform: platform, Date: date}
	}

	writeJSON(w, http.StatusOK, stat)
}
