package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CatalogPoster/internal/domain"
)

type memoryStore struct {
	events []domain.Event
	err    error
}

func (m *memoryStore) Append(_ context.Context, ev domain.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryStore) Query(context.Context, domain.EventFilter) ([]domain.Event, error) {
	return m.events, nil
}

func (m *memoryStore) Cleanup(context.Context, time.Time) (int64, error) { return 0, nil }

func TestEventLoggerWritesConsoleAndStore(t *testing.T) {
	var buf bytes.Buffer
	store := &memoryStore{}
	logger := NewEventLogger(NewWithWriter(&buf, "debug"), store).WithRun("run-1")

	logger.Info(context.Background(), domain.EventPosting, "post created", map[string]any{"post_id": 7})

	require.Len(t, store.events, 1)
	ev := store.events[0]
	assert.Equal(t, domain.LevelInfo, ev.Level)
	assert.Equal(t, domain.EventPosting, ev.Type)
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, 7, ev.Details["post_id"])
	assert.Contains(t, buf.String(), "post created")
	assert.Contains(t, buf.String(), "run_id=run-1")
}

func TestEventLoggerSwallowsStoreErrors(t *testing.T) {
	var buf bytes.Buffer
	store := &memoryStore{err: errors.New("disk full")}
	logger := NewEventLogger(NewWithWriter(&buf, "info"), store)

	logger.Error(context.Background(), domain.EventError, "boom", nil)

	assert.Contains(t, buf.String(), "event store append failed")
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, "ERROR", levelFromString(" Error ").String())
	assert.Equal(t, "WARN", levelFromString("warning").String())
	assert.Equal(t, "DEBUG", levelFromString("nonsense").String())
}
