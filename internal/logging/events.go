package logging

import (
	"context"
	"log/slog"
	"time"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

// EventLogger writes every event to the console logger and, when configured,
// to the persistent event store. Store failures never reach the caller.
type EventLogger struct {
	log   *slog.Logger
	store ports.EventStore
	runID string
	now   func() time.Time
}

// NewEventLogger builds an EventLogger. store may be nil.
func NewEventLogger(log *slog.Logger, store ports.EventStore) *EventLogger {
	if log == nil {
		log = slog.Default()
	}
	return &EventLogger{log: log, store: store, now: time.Now}
}

// WithRun returns a copy that tags every event with runID.
func (l *EventLogger) WithRun(runID string) *EventLogger {
	cp := *l
	cp.runID = runID
	cp.log = l.log.With("run_id", runID)
	return &cp
}

// Logger exposes the underlying slog logger.
func (l *EventLogger) Logger() *slog.Logger { return l.log }

func (l *EventLogger) Info(ctx context.Context, typ domain.EventType, msg string, details map[string]any) {
	l.emit(ctx, domain.LevelInfo, typ, msg, details)
}

func (l *EventLogger) Warn(ctx context.Context, typ domain.EventType, msg string, details map[string]any) {
	l.emit(ctx, domain.LevelWarning, typ, msg, details)
}

func (l *EventLogger) Error(ctx context.Context, typ domain.EventType, msg string, details map[string]any) {
	l.emit(ctx, domain.LevelError, typ, msg, details)
}

func (l *EventLogger) Debug(ctx context.Context, typ domain.EventType, msg string, details map[string]any) {
	l.emit(ctx, domain.LevelDebug, typ, msg, details)
}

func (l *EventLogger) emit(ctx context.Context, level domain.EventLevel, typ domain.EventType, msg string, details map[string]any) {
	attrs := make([]any, 0, 2+2*len(details))
	attrs = append(attrs, "type", string(typ))
	for k, v := range details {
		attrs = append(attrs, k, v)
	}
	l.log.Log(ctx, slogLevel(level), msg, attrs...)

	if l.store == nil {
		return
	}
	ev := domain.Event{
		Time:    l.now(),
		Level:   level,
		Type:    typ,
		Message: msg,
		Details: details,
		RunID:   l.runID,
	}
	// Use a detached context so cancelled runs still record why they stopped.
	if err := l.store.Append(context.WithoutCancel(ctx), ev); err != nil {
		l.log.Warn("event store append failed", "err", err)
	}
}

func slogLevel(level domain.EventLevel) slog.Level {
	switch level {
	case domain.LevelError:
		return slog.LevelError
	case domain.LevelWarning:
		return slog.LevelWarn
	case domain.LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
