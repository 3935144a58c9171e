package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/huddleapp/huddle/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, title, description, start_time, end_time, all_day, location,
	recur_freq, recur_interval, recur_until, created_by, created_at, updated_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var allDayInt int
	var until sql.NullTime

	err := scanner.Scan(&e.ID, &e.Title, &e.Description, &e.StartTime, &e.EndTime, &allDayInt,
		&e.Location, &e.RecurFreq, &e.RecurInterval, &until, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.AllDay = allDayInt != 0
	if until.Valid {
		t := until.Time
		e.RecurUntil = &t
	}
	return &e, nil
}

func (s *EventStore) Create(e *model.Event) (*model.Event, error) {
	var allDayInt int
	if e.AllDay {
		allDayInt = 1
	}
	interval := e.RecurInterval
	if interval < 1 {
		interval = 1
	}
	var until sql.NullTime
	if e.RecurUntil != nil {
		until = sql.NullTime{Time: e.RecurUntil.UTC(), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO events (title, description, start_time, end_time, all_day, location,
		 recur_freq, recur_interval, recur_until, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Description, e.StartTime.UTC(), e.EndTime.UTC(), allDayInt, e.Location,
		e.RecurFreq, interval, until, e.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListByDateRange returns events intersecting [start, end), plus any
// recurring event whose series could still produce occurrences in the
// range. Expansion into concrete occurrences is the caller's concern.
func (s *EventStore) ListByDateRange(start, end time.Time) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM events
		 WHERE (start_time < ? AND end_time > ?)
		    OR (recur_freq != '' AND start_time < ? AND (recur_until IS NULL OR recur_until >= ?))
		 ORDER BY all_day DESC, start_time ASC`,
		end.UTC(), start.UTC(), end.UTC(), start.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventStore) Update(id int64, e *model.Event) (*model.Event, error) {
	var allDayInt int
	if e.AllDay {
		allDayInt = 1
	}
	interval := e.RecurInterval
	if interval < 1 {
		interval = 1
	}
	var until sql.NullTime
	if e.RecurUntil != nil {
		until = sql.NullTime{Time: e.RecurUntil.UTC(), Valid: true}
	}

	_, err := s.db.Exec(
		`UPDATE events
		 SET title = ?, description = ?, start_time = ?, end_time = ?, all_day = ?, location = ?,
		     recur_freq = ?, recur_interval = ?, recur_until = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		e.Title, e.Description, e.StartTime.UTC(), e.EndTime.UTC(), allDayInt, e.Location,
		e.RecurFreq, interval, until, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
