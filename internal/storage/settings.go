// Package storage - Settings, id counter and access-gate persistence.
package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Setting keys.
const (
	settingHTLCCounter = "htlc_counter"
	settingGateActive  = "gate_active"
	settingGenesisUnix = "genesis_unix"
)

// GetSetting returns a setting value. The second return is false when the
// key has never been written.
func (s *Storage) GetSetting(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting writes a setting value.
func (s *Storage) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// HTLCCounter returns the number of HTLCs ever created. Ids are valid iff
// 1 <= id <= counter.
func (s *Storage) HTLCCounter() (uint64, error) {
	value, ok, err := s.GetSetting(settingHTLCCounter)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt htlc counter %q: %w", value, err)
	}
	return n, nil
}

// readCounterTx reads the id counter inside a transaction.
func readCounterTx(tx *sql.Tx) (uint64, error) {
	var value string
	err := tx.QueryRow("SELECT value FROM settings WHERE key = ?", settingHTLCCounter).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read htlc counter: %w", err)
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt htlc counter %q: %w", value, err)
	}
	return n, nil
}

// writeCounterTx writes the id counter inside a transaction.
func writeCounterTx(tx *sql.Tx, n uint64) error {
	_, err := tx.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, settingHTLCCounter, strconv.FormatUint(n, 10), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write htlc counter: %w", err)
	}
	return nil
}

// GateActive returns the access-gate flag. Defaults to true until the
// owner flips it.
func (s *Storage) GateActive() (bool, error) {
	value, ok, err := s.GetSetting(settingGateActive)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return value == "1", nil
}

// SetGateActive writes the access-gate flag.
func (s *Storage) SetGateActive(active bool) error {
	value := "0"
	if active {
		value = "1"
	}
	return s.SetSetting(settingGateActive, value)
}

// GenesisUnix returns the persisted genesis timestamp, if any. Persisting
// it keeps heights monotonic across restarts.
func (s *Storage) GenesisUnix() (int64, bool, error) {
	value, ok, err := s.GetSetting(settingGenesisUnix)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt genesis timestamp %q: %w", value, err)
	}
	return n, true, nil
}

// SetGenesisUnix persists the genesis timestamp.
func (s *Storage) SetGenesisUnix(ts int64) error {
	return s.SetSetting(settingGenesisUnix, strconv.FormatInt(ts, 10))
}
