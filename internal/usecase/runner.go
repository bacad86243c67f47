package usecase

import (
	"context"
	"errors"
	"sync/atomic"

	"CatalogPoster/internal/domain"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// JobLoader returns the job for a slot, read fresh at run start.
type JobLoader func(slot int) (domain.JobSpec, error)

// Runner enforces at most one pipeline run per process.
type Runner struct {
	pipeline *Pipeline
	jobs     JobLoader
	running  atomic.Bool
}

// NewRunner guards pipeline runs for jobs loaded through jobs.
func NewRunner(pipeline *Pipeline, jobs JobLoader) *Runner {
	return &Runner{pipeline: pipeline, jobs: jobs}
}

// Running reports whether a run is active.
func (r *Runner) Running() bool { return r.running.Load() }

// TryRun executes the job in slot synchronously, or returns ErrRunInProgress
// without waiting when another run holds the guard.
func (r *Runner) TryRun(ctx context.Context, slot int) (domain.RunResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return domain.RunResult{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	job, err := r.jobs(slot)
	if err != nil {
		return domain.RunResult{}, err
	}
	return r.pipeline.RunOnce(ctx, job)
}

// Start launches the job in the background. It reports ErrRunInProgress
// immediately when the guard is taken; otherwise done receives the outcome.
func (r *Runner) Start(ctx context.Context, slot int, done func(domain.RunResult, error)) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	go func() {
		defer r.running.Store(false)
		job, err := r.jobs(slot)
		var result domain.RunResult
		if err == nil {
			result, err = r.pipeline.RunOnce(ctx, job)
		}
		if done != nil {
			done(result, err)
		}
	}()
	return nil
}
