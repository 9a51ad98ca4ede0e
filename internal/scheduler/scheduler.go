package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/postwatch/postwatch/internal/monitor"
)

// Status is a snapshot of the scheduler's state.
type Status struct {
	Armed   bool          `json:"armed"`
	Running bool          `json:"running"`
	Cadence time.Duration `json:"cadence"`
	NextRun *time.Time    `json:"next_run,omitempty"`
}

// Scheduler fires monitoring cycles on a fixed cadence. Overlapping cycles
// are skipped: the monitor admits one cycle at a time and the scheduler
// logs and moves on when a tick finds one still running.
type Scheduler struct {
	monitor *monitor.Monitor
	cadence time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	engine  *cron.Cron
	entryID cron.EntryID
}

// NewScheduler creates a scheduler firing at the given cadence.
func NewScheduler(m *monitor.Monitor, cadence time.Duration, logger *slog.Logger) *Scheduler {
	if cadence <= 0 {
		cadence = 5 * time.Minute
	}
	return &Scheduler{
		monitor: m,
		cadence: cadence,
		logger:  logger,
	}
}

// Start arms the scheduler. The context bounds every cycle it fires.
// Starting an armed scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return nil
	}

	engine := cron.New()
	entryID, err := engine.AddFunc(fmt.Sprintf("@every %s", s.cadence), func() {
		s.fire(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule monitoring cycle: %w", err)
	}

	engine.Start()
	s.engine = engine
	s.entryID = entryID

	s.logger.Info("scheduler armed", "cadence", s.cadence)
	return nil
}

// Stop disarms the scheduler. A cycle already in flight finishes on its
// own; only future ticks are cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return
	}

	s.engine.Stop()
	s.engine = nil
	s.logger.Info("scheduler disarmed")
}

// TriggerManual runs a cycle immediately, sharing the monitor's
// single-flight guard with scheduled ticks. Works whether or not the
// scheduler is armed.
func (s *Scheduler) TriggerManual(ctx context.Context) (*monitor.CycleResult, error) {
	return s.monitor.RunCycle(ctx)
}

// Status reports whether the scheduler is armed, whether a cycle is
// running, and when the next tick fires.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Cadence: s.cadence,
		Running: s.monitor.InProgress(),
	}
	if s.engine != nil {
		status.Armed = true
		next := s.engine.Entry(s.entryID).Next
		if !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

func (s *Scheduler) fire(ctx context.Context) {
	result, err := s.monitor.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, monitor.ErrCheckInProgress) {
			s.logger.Warn("skipping scheduled cycle, previous one still running")
			return
		}
		s.logger.Error("scheduled cycle failed", "error", err)
		return
	}

	s.logger.Debug("scheduled cycle complete",
		"accounts", result.Accounts,
		"posts_found", result.PostsFound,
	)
}
