package sqlite

import (
	"database/sql"
	"fmt"

	"trashdetector/internal/model"
)

// EventRepository implements repository.EventRepository for SQLite.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert adds a new event. A label already stored for the same session
// returns ErrDuplicate.
func (r *EventRepository) Insert(event *model.Event) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO events (session_id, label, object_count, timestamp, snapshot, filesize)
		VALUES (?, ?, ?, ?, ?, ?)
	`, event.SessionID, event.Label, event.Count, event.Timestamp.UTC(), event.Snapshot, event.FileSize)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicate, event.Label)
		}
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	return result.LastInsertId()
}

const eventColumns = `id, session_id, label, object_count, timestamp, snapshot, filesize`

func scanEvent(row interface{ Scan(...interface{}) error }) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(&e.ID, &e.SessionID, &e.Label, &e.Count, &e.Timestamp, &e.Snapshot, &e.FileSize); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByID retrieves an event by its ID.
func (r *EventRepository) GetByID(id int64) (*model.Event, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	e, err := scanEvent(r.db.Conn().QueryRow(`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// GetByLabel retrieves the event a session logged under label.
func (r *EventRepository) GetByLabel(sessionID, label string) (*model.Event, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	e, err := scanEvent(r.db.Conn().QueryRow(`
		SELECT `+eventColumns+` FROM events WHERE session_id = ? AND label = ?
	`, sessionID, label))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// whereClause builds the shared filter for GetAll and GetTotalCount.
func whereClause(filter *model.EventFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}

	if filter.MinCount > 0 {
		query += " AND object_count >= ?"
		args = append(args, filter.MinCount)
	}

	if !filter.After.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.After.UTC())
	}

	if !filter.Before.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.Before.UTC())
	}

	return query, args
}

// GetAll retrieves events based on filter criteria, newest first.
func (r *EventRepository) GetAll(filter *model.EventFilter) ([]model.Event, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}

	return events, rows.Err()
}

// GetTotalCount returns the number of events matching the filter.
func (r *EventRepository) GetTotalCount(filter *model.EventFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM events`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}

// GetStats returns statistics about stored events.
func (r *EventRepository) GetStats() (*model.EventStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.EventStats{
		PerSession: make(map[string]int),
	}

	err := r.db.Conn().QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(object_count), 0), COALESCE(SUM(filesize), 0), COALESCE(MAX(object_count), 0)
		FROM events
	`).Scan(&stats.TotalEvents, &stats.TotalObjects, &stats.TotalSizeBytes, &stats.MaxCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate events: %w", err)
	}

	rows, err := r.db.Conn().Query(`SELECT session_id, COUNT(*) FROM events GROUP BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to group events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var session string
		var count int
		if err := rows.Scan(&session, &count); err != nil {
			return nil, err
		}
		stats.PerSession[session] = count
	}

	return stats, rows.Err()
}

// DeleteAll removes all events and their detections.
func (r *EventRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}

	return nil
}
