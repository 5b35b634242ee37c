// Package jobs runs the periodic maintenance of the box office.
package jobs

import (
	"context"
	"fmt"
	"time"

	"ms-boxoffice/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// PendingExpirer is satisfied by *refund.Service.
type PendingExpirer interface {
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

type Scheduler struct {
	scheduler gocron.Scheduler
	Expirer   PendingExpirer
	TTL       time.Duration
	Timeout   time.Duration
	Logger    *logger.Logger
}

// NewScheduler schedules the pending payment sweep every interval. Nothing
// runs until Start.
func NewScheduler(expirer PendingExpirer, ttl, interval time.Duration, l *logger.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &Scheduler{scheduler: s, Expirer: expirer, TTL: ttl, Timeout: interval, Logger: l}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(js.ExpirePending),
		gocron.WithName("expire-pending-payments"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule pending payment sweep: %w", err)
	}
	return js, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	s.Logger.Info("JOBS", fmt.Sprintf("✅ Pending payment sweep scheduled (ttl %s)", s.TTL))
}

func (s *Scheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

// ExpirePending is the body of the sweep job.
func (s *Scheduler) ExpirePending() {
	ctx := context.Background()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	n, err := s.Expirer.ExpireStalePending(ctx, s.TTL)
	if err != nil {
		s.Logger.Error("JOBS", fmt.Sprintf("pending payment sweep failed after %d: %v", n, err))
		return
	}
	s.Logger.Debug("JOBS", fmt.Sprintf("pending payment sweep expired %d payments", n))
}
