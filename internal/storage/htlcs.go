// Package storage - HTLC registry operations.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// HTLC errors
var (
	ErrHTLCNotFound  = errors.New("htlc not found")
	ErrHTLCNotActive = errors.New("htlc is not active")
)

// Status represents the state of an HTLC. Transitions are one-way:
// active -> claimed or active -> refunded, never back.
type Status string

const (
	StatusActive   Status = "active"
	StatusClaimed  Status = "claimed"
	StatusRefunded Status = "refunded"
)

// HTLC represents a hash-time-locked escrow in the database.
type HTLC struct {
	ID        uint64
	Sender    string
	Recipient string
	Amount    uint64
	HashLock  []byte // 32-byte SHA256 digest
	Timelock  uint64 // absolute height
	Status    Status
	CreatedAt uint64 // height at creation

	// ResolvedAt is the height at which the HTLC was claimed or
	// refunded, nil while active.
	ResolvedAt *uint64
}

// CreateHTLC allocates the next id, moves the amount from the sender to
// the escrow account and inserts the record, all in one transaction. On
// any failure nothing is written and the id counter does not advance.
// The allocated id is returned and set on h.
func (s *Storage) CreateHTLC(h *HTLC, escrowAccount string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin create: %w", err)
	}
	defer tx.Rollback()

	counter, err := readCounterTx(tx)
	if err != nil {
		return 0, err
	}
	id := counter + 1

	if err := transferTx(tx, h.Sender, escrowAccount, h.Amount); err != nil {
		return 0, err
	}

	_, err = tx.Exec(`
		INSERT INTO htlcs (id, sender, recipient, amount, hash_lock, timelock, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, h.Sender, h.Recipient, h.Amount, h.HashLock, h.Timelock, StatusActive, h.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert htlc: %w", err)
	}

	if err := writeCounterTx(tx, id); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit create: %w", err)
	}

	h.ID = id
	h.Status = StatusActive
	return id, nil
}

// ResolveHTLC marks an active HTLC claimed or refunded, pays the escrowed
// amount out to payTo and, for claims, writes the claim record, all in one
// transaction. The row must still be active; a concurrent resolution
// surfaces as ErrHTLCNotActive.
func (s *Storage) ResolveHTLC(id uint64, status Status, escrowAccount, payTo string, resolvedAt uint64, claim *Claim) error {
	if status != StatusClaimed && status != StatusRefunded {
		return fmt.Errorf("invalid resolution status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin resolve: %w", err)
	}
	defer tx.Rollback()

	var amount uint64
	err = tx.QueryRow("SELECT amount FROM htlcs WHERE id = ?", id).Scan(&amount)
	if err == sql.ErrNoRows {
		return ErrHTLCNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read htlc: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE htlcs SET status = ?, resolved_at = ?
		WHERE id = ? AND status = ?
	`, status, resolvedAt, id, StatusActive)
	if err != nil {
		return fmt.Errorf("failed to update htlc status: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrHTLCNotActive
	}

	if err := transferTx(tx, escrowAccount, payTo, amount); err != nil {
		return err
	}

	if claim != nil {
		if err := insertClaimTx(tx, claim); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resolve: %w", err)
	}

	return nil
}

// GetHTLC retrieves an HTLC by id.
func (s *Storage) GetHTLC(id uint64) (*HTLC, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var h HTLC
	var resolvedAt sql.NullInt64

	err := s.db.QueryRow(`
		SELECT id, sender, recipient, amount, hash_lock, timelock, status, created_at, resolved_at
		FROM htlcs WHERE id = ?
	`, id).Scan(
		&h.ID, &h.Sender, &h.Recipient, &h.Amount, &h.HashLock,
		&h.Timelock, &h.Status, &h.CreatedAt, &resolvedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrHTLCNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get htlc: %w", err)
	}

	if resolvedAt.Valid {
		v := uint64(resolvedAt.Int64)
		h.ResolvedAt = &v
	}

	return &h, nil
}

// HTLCFilter defines filters for listing HTLCs.
type HTLCFilter struct {
	Status    *Status
	Sender    string
	Recipient string
	Limit     int
	Offset    int
}

// ListHTLCs returns HTLCs matching the filter, newest first.
func (s *Storage) ListHTLCs(filter HTLCFilter) ([]*HTLC, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, sender, recipient, amount, hash_lock, timelock, status, created_at, resolved_at
		FROM htlcs WHERE 1=1
	`
	args := []interface{}{}

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.Sender != "" {
		query += " AND sender = ?"
		args = append(args, filter.Sender)
	}
	if filter.Recipient != "" {
		query += " AND recipient = ?"
		args = append(args, filter.Recipient)
	}

	query += " ORDER BY id DESC"

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
		return nil, fmt.Errorf("failed to list htlcs: %w", err)
	}
	defer rows.Close()

	var htlcs []*HTLC
	for rows.Next() {
		var h HTLC
		var resolvedAt sql.NullInt64

		err := rows.Scan(
			&h.ID, &h.Sender, &h.Recipient, &h.Amount, &h.HashLock,
			&h.Timelock, &h.Status, &h.CreatedAt, &resolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan htlc: %w", err)
		}

		if resolvedAt.Valid {
			v := uint64(resolvedAt.Int64)
			h.ResolvedAt = &v
		}

		htlcs = append(htlcs, &h)
	}

	return htlcs, nil
}

// CountHTLCs returns the count of HTLCs by status.
func (s *Storage) CountHTLCs(status *Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	var err error

	if status != nil {
		err = s.db.QueryRow("SELECT COUNT(*) FROM htlcs WHERE status = ?", *status).Scan(&count)
	} else {
		err = s.db.QueryRow("SELECT COUNT(*) FROM htlcs").Scan(&count)
	}

	if err != nil {
		return 0, fmt.Errorf("failed to count htlcs: %w", err)
	}

	return count, nil
}
