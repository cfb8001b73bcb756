// Package storage - Claim ledger operations.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// Claim errors
var (
	ErrClaimNotFound      = errors.New("claim not found")
	ErrClaimAlreadyExists = errors.New("claim already recorded for this htlc")
)

// Claim records a successful HTLC claim, including the revealed preimage.
// Written at most once per HTLC id and never mutated afterwards.
type Claim struct {
	HTLCID    uint64
	Claimer   string
	Preimage  []byte // 32-byte value hashing to the HTLC's hash lock
	ClaimedAt uint64 // height
}

// insertClaimTx writes a claim record inside an open transaction.
func insertClaimTx(tx *sql.Tx, c *Claim) error {
	_, err := tx.Exec(`
		INSERT INTO claims (htlc_id, claimer, preimage, claimed_at)
		VALUES (?, ?, ?, ?)
	`, c.HTLCID, c.Claimer, c.Preimage, c.ClaimedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrClaimAlreadyExists
		}
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	return nil
}

// GetClaim retrieves the claim record for an HTLC id.
func (s *Storage) GetClaim(htlcID uint64) (*Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Claim
	err := s.db.QueryRow(`
		SELECT htlc_id, claimer, preimage, claimed_at
		FROM claims WHERE htlc_id = ?
	`, htlcID).Scan(&c.HTLCID, &c.Claimer, &c.Preimage, &c.ClaimedAt)

	if err == sql.ErrNoRows {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return &c, nil
}
