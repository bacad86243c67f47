package domain

import "time"

// EventLevel mirrors the severity stored with every event.
type EventLevel string

const (
	LevelDebug   EventLevel = "DEBUG"
	LevelInfo    EventLevel = "INFO"
	LevelWarning EventLevel = "WARNING"
	LevelError   EventLevel = "ERROR"
)

// EventType groups events by subsystem.
type EventType string

const (
	EventSystem   EventType = "system"
	EventScraping EventType = "scraping"
	EventPosting  EventType = "posting"
	EventError    EventType = "error"
	EventSchedule EventType = "schedule"
	EventCategory EventType = "category"
)

// Event is one structured log record.
type Event struct {
	ID      int64
	Time    time.Time
	Level   EventLevel
	Type    EventType
	Message string
	Details map[string]any
	RunID   string
}

// EventFilter narrows event queries; zero values are ignored.
type EventFilter struct {
	Level EventLevel
	Type  EventType
	RunID string
	Since time.Time
	Until time.Time
	Limit int
}
