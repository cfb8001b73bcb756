// Package storage - Append-only event log.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventRecord is one entry in the append-only event log.
type EventRecord struct {
	ID        string // uuid
	Kind      string // created, claimed, refunded, paused, resumed
	HTLCID    *uint64
	Payload   string // JSON field set for the kind
	EmittedAt time.Time
}

// AppendEvent writes an event record. The id is assigned here when empty.
func (s *Storage) AppendEvent(ev *EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.EmittedAt.IsZero() {
		ev.EmittedAt = time.Now()
	}

	var htlcID interface{}
	if ev.HTLCID != nil {
		htlcID = *ev.HTLCID
	}

	_, err := s.db.Exec(`
		INSERT INTO events (id, kind, htlc_id, payload, emitted_at)
		VALUES (?, ?, ?, ?, ?)
	`, ev.ID, ev.Kind, htlcID, ev.Payload, ev.EmittedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// EventFilter defines filters for listing events.
type EventFilter struct {
	Kind   string
	HTLCID *uint64
	Limit  int
	Offset int
}

// ListEvents returns event records matching the filter, newest first.
func (s *Storage) ListEvents(filter EventFilter) ([]*EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, kind, htlc_id, payload, emitted_at FROM events WHERE 1=1"
	args := []interface{}{}

	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.HTLCID != nil {
		query += " AND htlc_id = ?"
		args = append(args, *filter.HTLCID)
	}

	// rowid preserves insertion order; emitted_at has only second
	// precision.
	query += " ORDER BY rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		var ev EventRecord
		var htlcID sql.NullInt64
		var emittedAt int64

		if err := rows.Scan(&ev.ID, &ev.Kind, &htlcID, &ev.Payload, &emittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if htlcID.Valid {
			v := uint64(htlcID.Int64)
			ev.HTLCID = &v
		}
		ev.EmittedAt = time.Unix(emittedAt, 0)

		events = append(events, &ev)
	}

	return events, nil
}
