// Package storage - Account ledger operations.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Account errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Account represents one ledger account.
type Account struct {
	Name    string
	Balance uint64
}

// GetBalance returns the balance of an account. Unknown accounts have a
// zero balance.
func (s *Storage) GetBalance(name string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance uint64
	err := s.db.QueryRow("SELECT balance FROM accounts WHERE name = ?", name).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// Credit adds funds to an account, creating it if needed.
func (s *Storage) Credit(name string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO accounts (name, balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET balance = balance + excluded.balance, updated_at = excluded.updated_at
	`, name, amount, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}
	return nil
}

// Transfer moves funds between two accounts atomically. It fails with
// ErrInsufficientFunds when the source balance is too low, leaving both
// accounts untouched.
func (s *Storage) Transfer(from, to string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transfer: %w", err)
	}
	defer tx.Rollback()

	if err := transferTx(tx, from, to, amount); err != nil {
		return err
	}

	return tx.Commit()
}

// transferTx moves funds between accounts inside an open transaction.
// The debit is conditional on sufficient balance so a failed transfer
// leaves no partial effect.
func transferTx(tx *sql.Tx, from, to string, amount uint64) error {
	now := time.Now().Unix()

	res, err := tx.Exec(`
		UPDATE accounts SET balance = balance - ?, updated_at = ?
		WHERE name = ? AND balance >= ?
	`, amount, now, from, amount)
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", from, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrInsufficientFunds
	}

	_, err = tx.Exec(`
		INSERT INTO accounts (name, balance, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET balance = balance + excluded.balance, updated_at = excluded.updated_at
	`, to, amount, now)
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", to, err)
	}

	return nil
}

// ListAccounts returns all accounts ordered by name.
func (s *Storage) ListAccounts() ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT name, balance FROM accounts ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Name, &a.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &a)
	}

	return accounts, nil
}
