package usecase

import (
	"context"
	"errors"
	"time"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/logging"
	"CatalogPoster/internal/ports"
)

// PlanSource returns the schedule plan in effect; it is read on every tick
// so saved settings apply without a restart.
type PlanSource func() (domain.SchedulePlan, error)

// Scheduler wires the minute tick driver with the run guard.
type Scheduler struct {
	driver ports.Scheduler
	runner *Runner
	plan   PlanSource
	events *logging.EventLogger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, runner *Runner, plan PlanSource, events *logging.EventLogger) *Scheduler {
	if events == nil {
		events = logging.NewEventLogger(nil, nil)
	}
	return &Scheduler{driver: driver, runner: runner, plan: plan, events: events}
}

// Start registers the plan evaluation with the tick driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil || s.plan == nil {
		return nil
	}

	s.events.Info(ctx, domain.EventSchedule, "scheduler started", nil)
	return s.driver.Start(ctx, func(trigger time.Time) {
		s.Tick(ctx, trigger)
	})
}

// Tick fires the job planned for trigger, if any.
func (s *Scheduler) Tick(ctx context.Context, trigger time.Time) {
	plan, err := s.plan()
	if err != nil {
		s.events.Error(ctx, domain.EventSchedule, "schedule plan unavailable", map[string]any{"error": err.Error()})
		return
	}
	slot, ok := plan.JobFor(trigger)
	if !ok {
		return
	}

	details := map[string]any{"slot": slot, "at": trigger.Format("15:04")}
	err = s.runner.Start(ctx, slot, func(result domain.RunResult, err error) {
		if err != nil {
			s.events.Error(ctx, domain.EventSchedule, "scheduled run failed", map[string]any{"slot": slot, "error": err.Error()})
			return
		}
		s.events.Info(ctx, domain.EventSchedule, "scheduled run finished", map[string]any{"slot": slot, "posts": len(result.PostIDs)})
	})
	if errors.Is(err, ErrRunInProgress) {
		s.events.Warn(ctx, domain.EventSchedule, "scheduled run skipped, previous run still active", details)
		return
	}
	s.events.Info(ctx, domain.EventSchedule, "scheduled run triggered", details)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	s.events.Info(ctx, domain.EventSchedule, "scheduler stopped", nil)
	return s.driver.Stop(ctx)
}
