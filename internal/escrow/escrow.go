// Package escrow implements the hash-time-locked escrow state machine.
//
// A sender locks an amount that the recipient can claim by revealing the
// preimage of a committed SHA256 digest before the timelock height;
// afterwards the sender may reclaim it. Each escrow resolves exactly
// once. All mutating operations are serialized and all-or-nothing:
// either every precondition passes and the status write, claim record
// and ledger transfer commit together, or nothing changes.
package escrow

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/meridian-exchange/escrowd/internal/clock"
	"github.com/meridian-exchange/escrowd/internal/storage"
	"github.com/meridian-exchange/escrowd/pkg/logging"
)

// Config holds the dependencies and settings of a Manager.
type Config struct {
	Store *storage.Storage
	Clock clock.HeightSource

	// Owner may pause/resume the gate.
	Owner string

	// EscrowAccount is the custodian account holding locked funds.
	EscrowAccount string

	// MinLockBlocks is the minimum distance between the current height
	// and a new HTLC's timelock.
	MinLockBlocks uint64

	// Events, when set, receives every emitted event after commit.
	Events EventSink
}

// Manager owns the HTLC registry and enforces its state machine.
type Manager struct {
	mu sync.Mutex

	store *storage.Storage
	clock clock.HeightSource
	log   *logging.Logger

	owner         string
	escrowAccount string
	minLockBlocks uint64
	events        EventSink
}

// NewManager creates an escrow manager.
func NewManager(cfg *Config) *Manager {
	return &Manager{
		store:         cfg.Store,
		clock:         cfg.Clock,
		log:           logging.GetDefault().Component("escrow"),
		owner:         cfg.Owner,
		escrowAccount: cfg.EscrowAccount,
		minLockBlocks: cfg.MinLockBlocks,
		events:        cfg.Events,
	}
}

// SetEventSink installs the live event sink. Used when the sink is not
// available at construction time.
func (m *Manager) SetEventSink(sink EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = sink
}

// Create locks amount from sender for recipient under hashLock until the
// timelock height and returns the new id. Preconditions are checked in
// order; the first failure aborts with no state change and no id burned.
func (m *Manager) Create(sender, recipient string, amount uint64, hashLock []byte, timelock uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active, err := m.store.GateActive()
	if err != nil {
		return 0, fmt.Errorf("failed to read gate: %w", err)
	}
	if !active {
		return 0, ErrPaused
	}

	if !ValidAmount(amount) {
		return 0, ErrZeroAmount
	}
	if !ValidRecipient(recipient, sender) {
		return 0, ErrInvalidRecipient
	}
	if !ValidHashLock(hashLock) {
		return 0, ErrInvalidHashLock
	}

	now := m.clock.CurrentHeight()
	if !ValidTimelock(timelock, now, m.minLockBlocks) {
		return 0, ErrInvalidTimelock
	}

	h := &storage.HTLC{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		HashLock:  append([]byte(nil), hashLock...),
		Timelock:  timelock,
		CreatedAt: now,
	}

	id, err := m.store.CreateHTLC(h, m.escrowAccount)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			return 0, ErrInsufficientFunds
		}
		return 0, fmt.Errorf("failed to create htlc: %w", err)
	}

	m.log.Info("HTLC created",
		"id", id, "sender", sender, "recipient", recipient,
		"amount", amount, "timelock", timelock, "height", now)

	m.emit(EventCreated, &id, &CreatedEvent{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Timelock:  timelock,
	})

	return id, nil
}

// Claim releases the escrowed amount of HTLC id to its recipient in
// exchange for the preimage of the hash lock. Only the recipient may
// claim, only while the HTLC is active and strictly before the timelock
// height. Claim ignores the pause gate: existing obligations stay
// servable while new exposure is braked.
func (m *Manager) Claim(caller string, id uint64, preimage []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := resolvedStatusErr(h.Status); err != nil {
		return err
	}

	now := m.clock.CurrentHeight()
	if now >= h.Timelock {
		return ErrExpired
	}
	if len(preimage) == 0 || !VerifyPreimage(preimage, h.HashLock) {
		return ErrInvalidPreimage
	}
	if caller != h.Recipient {
		return ErrUnauthorized
	}

	claim := &storage.Claim{
		HTLCID:    id,
		Claimer:   caller,
		Preimage:  append([]byte(nil), preimage...),
		ClaimedAt: now,
	}
	err = m.store.ResolveHTLC(id, storage.StatusClaimed, m.escrowAccount, h.Recipient, now, claim)
	if err != nil {
		return fmt.Errorf("failed to claim htlc %d: %w", id, err)
	}

	m.log.Info("HTLC claimed", "id", id, "claimer", caller, "amount", h.Amount, "height", now)

	m.emit(EventClaimed, &id, &ClaimedEvent{
		ID:      id,
		Claimer: caller,
		Amount:  h.Amount,
	})

	return nil
}

// Refund returns the escrowed amount of HTLC id to its sender once the
// timelock height has been reached. Only the sender may refund, only
// while the HTLC is active. Like Claim, Refund ignores the pause gate.
func (m *Manager) Refund(caller string, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := resolvedStatusErr(h.Status); err != nil {
		return err
	}

	now := m.clock.CurrentHeight()
	if now < h.Timelock {
		return ErrNotExpired
	}
	if caller != h.Sender {
		return ErrUnauthorized
	}

	err = m.store.ResolveHTLC(id, storage.StatusRefunded, m.escrowAccount, h.Sender, now, nil)
	if err != nil {
		return fmt.Errorf("failed to refund htlc %d: %w", id, err)
	}

	m.log.Info("HTLC refunded", "id", id, "sender", h.Sender, "amount", h.Amount, "height", now)

	m.emit(EventRefunded, &id, &RefundedEvent{
		ID:     id,
		Sender: h.Sender,
		Amount: h.Amount,
	})

	return nil
}

// Pause closes the gate for new escrows. Owner only.
func (m *Manager) Pause(caller string) error {
	return m.setGate(caller, false)
}

// Resume reopens the gate. Owner only.
func (m *Manager) Resume(caller string) error {
	return m.setGate(caller, true)
}

func (m *Manager) setGate(caller string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.owner {
		return ErrUnauthorized
	}

	if err := m.store.SetGateActive(active); err != nil {
		return fmt.Errorf("failed to set gate: %w", err)
	}

	kind := EventPaused
	if active {
		kind = EventResumed
	}
	m.log.Info("Gate changed", "active", active, "caller", caller)
	m.emit(kind, nil, &GateEvent{Caller: caller})

	return nil
}

// lookup fetches an HTLC for a mutating operation, mapping unknown and
// out-of-range ids to ErrNotFound.
func (m *Manager) lookup(id uint64) (*storage.HTLC, error) {
	counter, err := m.store.HTLCCounter()
	if err != nil {
		return nil, fmt.Errorf("failed to read counter: %w", err)
	}
	if !IDInRange(id, counter) {
		return nil, ErrNotFound
	}

	h, err := m.store.GetHTLC(id)
	if err != nil {
		if errors.Is(err, storage.ErrHTLCNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read htlc %d: %w", id, err)
	}
	return h, nil
}

// resolvedStatusErr maps a terminal status to its error kind. The true
// prior status is surfaced rather than a collapsed "not active".
func resolvedStatusErr(status storage.Status) error {
	switch status {
	case storage.StatusClaimed:
		return ErrAlreadyClaimed
	case storage.StatusRefunded:
		return ErrAlreadyRefunded
	default:
		return nil
	}
}

// emit appends the event to the persistent log and forwards it to the
// configured sink. The state change has already committed; log append
// failures are logged, not propagated.
func (m *Manager) emit(kind string, htlcID *uint64, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.log.Error("Failed to marshal event", "kind", kind, "error", err)
		return
	}

	ev := &storage.EventRecord{
		Kind:    kind,
		HTLCID:  htlcID,
		Payload: string(data),
	}
	if err := m.store.AppendEvent(ev); err != nil {
		m.log.Error("Failed to append event", "kind", kind, "error", err)
	}

	if m.events != nil {
		m.events(kind, htlcID, payload)
	}
}

// Get returns the HTLC with the given id, or false when absent.
// Read-only queries never error; storage failures are logged and
// reported as absent.
func (m *Manager) Get(id uint64) (*storage.HTLC, bool) {
	h, err := m.store.GetHTLC(id)
	if err != nil {
		if !errors.Is(err, storage.ErrHTLCNotFound) {
			m.log.Error("Failed to read htlc", "id", id, "error", err)
		}
		return nil, false
	}
	return h, true
}

// GetClaim returns the claim record for id, or false when absent.
func (m *Manager) GetClaim(id uint64) (*storage.Claim, bool) {
	c, err := m.store.GetClaim(id)
	if err != nil {
		if !errors.Is(err, storage.ErrClaimNotFound) {
			m.log.Error("Failed to read claim", "id", id, "error", err)
		}
		return nil, false
	}
	return c, true
}

// Counter returns the number of HTLCs ever created.
func (m *Manager) Counter() uint64 {
	counter, err := m.store.HTLCCounter()
	if err != nil {
		m.log.Error("Failed to read counter", "error", err)
		return 0
	}
	return counter
}

// IsExpired reports whether id's timelock height has been reached.
// False for unknown ids.
func (m *Manager) IsExpired(id uint64) bool {
	h, ok := m.Get(id)
	if !ok {
		return false
	}
	return m.clock.CurrentHeight() >= h.Timelock
}

// IsClaimable reports whether id is active and before its timelock.
// Preimage and caller checks still apply at claim time.
func (m *Manager) IsClaimable(id uint64) bool {
	h, ok := m.Get(id)
	if !ok {
		return false
	}
	return h.Status == storage.StatusActive && m.clock.CurrentHeight() < h.Timelock
}

// IsRefundable reports whether id is active and at or past its timelock.
func (m *Manager) IsRefundable(id uint64) bool {
	h, ok := m.Get(id)
	if !ok {
		return false
	}
	return h.Status == storage.StatusActive && m.clock.CurrentHeight() >= h.Timelock
}

// GateActive reports the access-gate state.
func (m *Manager) GateActive() bool {
	active, err := m.store.GateActive()
	if err != nil {
		m.log.Error("Failed to read gate", "error", err)
		return false
	}
	return active
}

// List returns HTLCs matching the filter.
func (m *Manager) List(filter storage.HTLCFilter) ([]*storage.HTLC, error) {
	return m.store.ListHTLCs(filter)
}

// Owner returns the configured owner account.
func (m *Manager) Owner() string {
	return m.owner
}

// EscrowAccount returns the custodian account name.
func (m *Manager) EscrowAccount() string {
	return m.escrowAccount
}

// CurrentHeight returns the height source's current height.
func (m *Manager) CurrentHeight() uint64 {
	return m.clock.CurrentHeight()
}
