package repository

import (
	"trashdetector/internal/model"
)

// EventRepository defines the interface for logged detection events.
type EventRepository interface {
	// Create operations
	Insert(event *model.Event) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Event, error)
	GetByLabel(sessionID, label string) (*model.Event, error)
	GetAll(filter *model.EventFilter) ([]model.Event, error)
	GetTotalCount(filter *model.EventFilter) (int, error)
	GetStats() (*model.EventStats, error)

	// Delete operations
	DeleteAll() error
}

// DetectionRepository defines the interface for the boxes of each event.
type DetectionRepository interface {
	InsertBatch(detections []model.Detection) error
	GetByEventID(eventID int64) ([]model.Detection, error)
}
