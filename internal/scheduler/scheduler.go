package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs periodic maintenance jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
}

// New creates a new scheduler instance
func New(logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// a slow run is never overlapped by the next tick
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Every registers fn to run at the given interval, starting immediately once
// the scheduler is started
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	_, err := s.scheduler.Every(interval).Tag(name).Do(func() {
		start := time.Now()
		fn()
		s.logger.Debug("job finished",
			slog.String("job", name),
			slog.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.logger.Info("job scheduled", slog.String("job", name), slog.Duration("interval", interval))
	return nil
}

// JobCount returns the number of registered jobs
func (s *Scheduler) JobCount() int {
	return len(s.scheduler.Jobs())
}

// Start begins running all scheduled jobs without blocking
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
