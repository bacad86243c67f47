package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/ports"
)

const (
	timeLayout   = "2006-01-02T15:04:05.000000Z07:00"
	defaultLimit = 100
)

const schema = `CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	level TEXT NOT NULL,
	type TEXT NOT NULL,
	message TEXT NOT NULL,
	details TEXT,
	error_traceback TEXT,
	user_id TEXT,
	session_id TEXT,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_type ON logs(type);
CREATE INDEX IF NOT EXISTS idx_logs_session ON logs(session_id);`

var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// EventRepository persists structured events into the SQLite logs table.
type EventRepository struct {
	db *sql.DB
}

var _ ports.EventStore = (*EventRepository)(nil)

// OpenEventRepository opens (creating if needed) the database at path and
// applies the schema.
func OpenEventRepository(ctx context.Context, path string) (*EventRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open events db: %w", err)
	}
	db.SetMaxOpenConns(1)

	repo := NewEventRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewEventRepository wires an existing sql.DB.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Migrate creates the logs table and its indexes.
func (r *EventRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate events db: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (r *EventRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Append inserts one event.
func (r *EventRepository) Append(ctx context.Context, ev domain.Event) error {
	if r.db == nil {
		return nil
	}

	var details, traceback any
	if len(ev.Details) > 0 {
		raw, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("encode details: %w", err)
		}
		details = string(raw)
		if msg, ok := ev.Details["error"].(string); ok {
			traceback = msg
		}
	}
	var session any
	if ev.RunID != "" {
		session = ev.RunID
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	query, args, err := builder.Insert("logs").
		Columns("timestamp", "level", "type", "message", "details", "error_traceback", "session_id").
		Values(ts.UTC().Format(timeLayout), string(ev.Level), string(ev.Type), ev.Message, details, traceback, session).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (r *EventRepository) Query(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	if r.db == nil {
		return nil, nil
	}

	b := builder.Select("id", "timestamp", "level", "type", "message", "details", "session_id").
		From("logs").
		OrderBy("timestamp DESC", "id DESC")
	if f.Level != "" {
		b = b.Where(sq.Eq{"level": string(f.Level)})
	}
	if f.Type != "" {
		b = b.Where(sq.Eq{"type": string(f.Type)})
	}
	if f.RunID != "" {
		b = b.Where(sq.Eq{"session_id": f.RunID})
	}
	if !f.Since.IsZero() {
		b = b.Where(sq.GtOrEq{"timestamp": f.Since.UTC().Format(timeLayout)})
	}
	if !f.Until.IsZero() {
		b = b.Where(sq.LtOrEq{"timestamp": f.Until.UTC().Format(timeLayout)})
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	b = b.Limit(uint64(limit))

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}

	var out []domain.Event
	for rows.Next() {
		var (
			ev             domain.Event
			ts, level, typ string
			details, runID sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ts, &level, &typ, &ev.Message, &details, &runID); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Time, _ = time.Parse(timeLayout, ts)
		ev.Level = domain.EventLevel(level)
		ev.Type = domain.EventType(typ)
		ev.RunID = runID.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &ev.Details); err != nil {
				ev.Details = map[string]any{"raw": details.String}
			}
		}
		out = append(out, ev)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return out, nil
}

// Cleanup deletes events older than the cutoff and reports how many went.
func (r *EventRepository) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	if r.db == nil {
		return 0, nil
	}

	query, args, err := builder.Delete("logs").
		Where(sq.Lt{"timestamp": olderThan.UTC().Format(timeLayout)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
