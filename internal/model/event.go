package model

import "time"

// Event is a persisted Record together with its snapshot.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Label     string    `json:"label"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  string    `json:"snapshot"`
	FileSize  int64     `json:"filesize"`
}

// Detection is a persisted Box belonging to an Event.
type Detection struct {
	ID         int64   `json:"id"`
	EventID    int64   `json:"event_id"`
	Class      string  `json:"class"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Confidence float64 `json:"confidence"`
}

// EventFilter contains filtering options for querying events.
type EventFilter struct {
	SessionID string
	MinCount  int
	After     time.Time
	Before    time.Time
	Limit     int
	Offset    int
}

// EventStats contains statistics about stored events.
type EventStats struct {
	TotalEvents    int            `json:"total_events"`
	TotalObjects   int            `json:"total_objects"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerSession     map[string]int `json:"per_session"`
	MaxCount       int            `json:"max_count"`
}
