package scheduler

import (
	"context"
	"sync"
	"time"

	"CatalogPoster/internal/ports"
)

// MinuteTicker calls the job at every wall-clock minute boundary in loc.
type MinuteTicker struct {
	loc   *time.Location
	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*MinuteTicker)(nil)

// NewMinuteTicker builds a ticker that reports trigger times in loc.
func NewMinuteTicker(loc *time.Location) *MinuteTicker {
	if loc == nil {
		loc = time.Local
	}
	return &MinuteTicker{loc: loc, now: time.Now, after: time.After}
}

// Start begins ticking in a goroutine. Calling Start twice is a no-op.
func (m *MinuteTicker) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop, m.done = stop, done

	go func() {
		defer close(done)
		for {
			now := m.now()
			next := now.Truncate(time.Minute).Add(time.Minute)
			select {
			case <-m.after(next.Sub(now)):
				job(next.In(m.loc))
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine and waits for an in-flight job call.
func (m *MinuteTicker) Stop(ctx context.Context) error {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
