package escrow

import (
	"crypto/sha256"
	"errors"
	"os"
	"testing"

	"github.com/meridian-exchange/escrowd/internal/clock"
	"github.com/meridian-exchange/escrowd/internal/storage"
)

const (
	testOwner  = "owner"
	testEscrow = "escrow-vault"
	testMinLoc = 6
)

func newTestManager(t *testing.T) (*Manager, *storage.Storage, *clock.Manual) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "escrow_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := storage.New(&storage.Config{DataDir: tempDir})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clk := clock.NewManual(100)
	mgr := NewManager(&Config{
		Store:         store,
		Clock:         clk,
		Owner:         testOwner,
		EscrowAccount: testEscrow,
		MinLockBlocks: testMinLoc,
	})
	return mgr, store, clk
}

func fund(t *testing.T, store *storage.Storage, account string, amount uint64) {
	t.Helper()
	if err := store.Credit(account, amount); err != nil {
		t.Fatalf("Failed to credit %s: %v", account, err)
	}
}

func secretPair(secret string) ([]byte, []byte) {
	preimage := []byte(secret)
	digest := sha256.Sum256(preimage)
	return preimage, digest[:]
}

func TestCreateAssignsFirstID(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	fund(t, store, "alice", 1000)
	_, hashLock := secretPair("s1")

	id, err := mgr.Create("alice", "bob", 400, hashLock, 150)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected first id 1, got %d", id)
	}

	h, ok := mgr.Get(1)
	if !ok {
		t.Fatal("Created HTLC not found")
	}
	if h.Status != storage.StatusActive {
		t.Errorf("Expected status active, got %s", h.Status)
	}
	if h.CreatedAt != 100 {
		t.Errorf("Expected created_at 100, got %d", h.CreatedAt)
	}

	senderBal, _ := store.GetBalance("alice")
	escrowBal, _ := store.GetBalance(testEscrow)
	if senderBal != 600 {
		t.Errorf("Expected sender balance 600, got %d", senderBal)
	}
	if escrowBal != 400 {
		t.Errorf("Expected escrow balance 400, got %d", escrowBal)
	}
}

func TestCreateValidation(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	fund(t, store, "alice", 100)
	_, hashLock := secretPair("s1")

	tests := []struct {
		name      string
		sender    string
		recipient string
		amount    uint64
		hashLock  []byte
		timelock  uint64
		wantErr   error
	}{
		{"zero amount", "alice", "bob", 0, hashLock, 150, ErrZeroAmount},
		{"empty recipient", "alice", "", 50, hashLock, 150, ErrInvalidRecipient},
		{"self escrow", "alice", "alice", 50, hashLock, 150, ErrInvalidRecipient},
		{"short hash lock", "alice", "bob", 50, hashLock[:16], 150, ErrInvalidHashLock},
		{"zero hash lock", "alice", "bob", 50, make([]byte, 32), 150, ErrInvalidHashLock},
		{"past timelock", "alice", "bob", 50, hashLock, 90, ErrInvalidTimelock},
		{"lock too short", "alice", "bob", 50, hashLock, 105, ErrInvalidTimelock},
		{"insufficient funds", "alice", "bob", 500, hashLock, 150, ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.Create(tt.sender, tt.recipient, tt.amount, tt.hashLock, tt.timelock)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// No failed attempt may burn an id or move funds.
	if counter := mgr.Counter(); counter != 0 {
		t.Errorf("Expected counter 0 after failed creates, got %d", counter)
	}
	bal, _ := store.GetBalance("alice")
	if bal != 100 {
		t.Errorf("Expected untouched balance 100, got %d", bal)
	}
}

func TestClaimHappyPath(t *testing.T) {
	mgr, store, clk := newTestManager(t)
	fund(t, store, "alice", 1000)
	preimage, hashLock := secretPair("swordfish")

	id, err := mgr.Create("alice", "bob", 400, hashLock, 150)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	clk.Advance(5)
	if err := mgr.Claim("bob", id, preimage); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	h, _ := mgr.Get(id)
	if h.Status != storage.StatusClaimed {
		t.Errorf("Expected status claimed, got %s", h.Status)
	}
	if h.ResolvedAt == nil || *h.ResolvedAt != 105 {
		t.Errorf("Expected resolved_at 105, got %v", h.ResolvedAt)
	}

	recBal, _ := store.GetBalance("bob")
	escrowBal, _ := store.GetBalance(testEscrow)
	if recBal != 400 {
		t.Errorf("Expected recipient balance 400, got %d", recBal)
	}
	if escrowBal != 0 {
		t.Errorf("Expected escrow balance 0, got %d", escrowBal)
	}

	claim, ok := mgr.GetClaim(id)
	if !ok {
		t.Fatal("Claim record not found")
	}
	if claim.Claimer != "bob" || string(claim.Preimage) != "swordfish" {
		t.Errorf("Unexpected claim record: %+v", claim)
	}

	// A second claim must see the true terminal status.
	if err := mgr.Claim("bob", id, preimage); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("Expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestClaimWrongPreimage(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	fund(t, store, "alice", 1000)
	_, hashLock := secretPair("right")

	id, _ := mgr.Create("alice", "bob", 400, hashLock, 150)

	err := mgr.Claim("bob", id, []byte("wrong"))
	if !errors.Is(err, ErrInvalidPreimage) {
		t.Fatalf("Expected ErrInvalidPreimage, got %v", err)
	}
	if err := mgr.Claim("bob", id, nil); !errors.Is(err, ErrInvalidPreimage) {
		t.Fatalf("Expected ErrInvalidPreimage for empty preimage, got %v", err)
	}

	h, _ := mgr.Get(id)
	if h.Status != storage.StatusActive {
		t.Errorf("HTLC should remain active, got %s", h.Status)
	}
	escrowBal, _ := store.GetBalance(testEscrow)
	if escrowBal != 400 {
		t.Errorf("Escrow balance should remain 400, got %d", escrowBal)
	}
}

func TestClaimAuthorization(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	fund(t, store, "alice", 1000)
	preimage, hashLock := secretPair("s1")

	id, _ := mgr.Create("alice", "bob", 400, hashLock, 150)

	if err := mgr.Claim("carol", id, preimage); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
	if err := mgr.Claim("alice", id, preimage); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for sender, got %v", err)
	}
}

func TestClaimAfterTimelock(t *testing.T) {
	mgr, store, clk := newTestManager(t)
	fund(t, store, "alice", 1000)
	preimage, hashLock := secretPair("s1")

	id, _ := mgr.Create("alice", "bob", 400, hashLock, 150)

	// The boundary height belongs to the refund window even with a
	// correct preimage.
	clk.Set(150)
	if err := mgr.Claim("bob", id, preimage); !errors.Is(err, ErrExpired) {
		t.Errorf("Expected ErrExpired at boundary, got %v", err)
	}

	clk.Set(200)
	if err := mgr.Claim("bob", id, preimage); !errors.Is(err, ErrExpired) {
		t.Errorf("Expected ErrExpired past boundary, got %v", err)
	}
}

func TestRefundAtBoundary(t *testing.T) {
	mgr, store, clk := newTestManager(t)
	fund(t, store, "alice", 1000)
	_, hashLock := secretPair("s1")

	id, _ := mgr.Create("alice", "bob", 400, hashLock, 150)

	// Too early.
	clk.Set(149)
	if err := mgr.Refund("alice", id); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("Expected ErrNotExpired before timelock, got %v", err)
	}

	clk.Set(150)
	if err := mgr.Refund("alice", id); err != nil {
		t.Fatalf("Refund at boundary failed: %v", err)
	}

	h, _ := mgr.Get(id)
	if h.Status != storage.StatusRefunded {
		t.Errorf("Expected status refunded, got %s", h.Status)
	}

	senderBal, _ := store.GetBalance("alice")
	escrowBal, _ := store.GetBalance(testEscrow)
	if senderBal != 1000 {
		t.Errorf("Expected restored balance 1000, got %d", senderBal)
	}
	if escrowBal != 0 {
		t.Errorf("Expected escrow balance 0, got %d", escrowBal)
	}

	if err := mgr.Refund("alice", id); !errors.Is(err, ErrAlreadyRefunded) {
		t.Errorf("Expected ErrAlreadyRefunded, got %v", err)
	}
}

func TestRefundAuthorization(t *testing.T) {
	mgr, store, clk := newTestManager(t)
	fund(t, store, "alice", 1000)
	_, hashLock := secretPair("s1")

	id, _ := mgr.Create("alice", "bob", 400, hashLock, 150)
	clk.Set(150)

	if err := mgr.Refund("bob", id); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for recipient, got %v", err)
	}
	if err := mgr.Refund("carol", id); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for stranger, got %v", err)
	}
}

func TestUnknownID(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	fund(t, store, "alice", 1000)
	preimage, _ := secretPair("s1")

	if _, ok := mgr.Get(999); ok {
		t.Error("Get(999) should report absent")
	}
	if err := mgr.Claim("bob", 999, preimage); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := mgr.Refund("alice", 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := mgr.Claim("bob", 0, preimage); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for id 0, got %v", err)
	}
}

func TestGateBlocksCreateOnly(t *testing.T) {
	mgr, store, clk := newTestManager(t)
	fund(t, store, "alice", 1000)
	preimage, hashLock := secretPair("s1")

	id, err := mgr.Create("alice", "bob", 400, hashLock, 150)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := mgr.Pause("alice"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized for non-owner pause, got %v", err)
	}
	if err := mgr.Pause(testOwner); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if mgr.GateActive() {
		t.Error("Gate should be inactive after pause")
	}

	if _, err := mgr.Create("alice", "bob", 100, hashLock, 150); !errors.Is(err, ErrPaused) {
		t.Errorf("Expected ErrPaused, got %v", err)
	}

	// Existing HTLCs stay servable while paused.
	if err := mgr.Claim("bob", id, preimage); err != nil {
		t.Errorf("Claim should bypass the gate, got %v", err)
	}

	if err := mgr.Resume(testOwner); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	_, hashLock2 := secretPair("s2")
	id2, err := mgr.Create("alice", "bob", 100, hashLock2, 200)
	if err != nil {
		t.Fatalf("Create after resume failed: %v", err)
	}
	if err := mgr.Pause(testOwner); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	clk.Set(200)
	if err := mgr.Refund("alice", id2); err != nil {
		t.Errorf("Refund should bypass the gate, got %v", err)
	}
}

func TestQueryPredicates(t *testing.T) {
	mgr, store, clk := newTestManager(t)
	fund(t, store, "alice", 1000)
	_, hashLock := secretPair("s1")

	id, _ := mgr.Create("alice", "bob", 400, hashLock, 150)

	if mgr.IsExpired(id) {
		t.Error("Fresh HTLC should not be expired")
	}
	if !mgr.IsClaimable(id) {
		t.Error("Fresh HTLC should be claimable")
	}
	if mgr.IsRefundable(id) {
		t.Error("Fresh HTLC should not be refundable")
	}

	clk.Set(150)
	if !mgr.IsExpired(id) {
		t.Error("HTLC at timelock should be expired")
	}
	if mgr.IsClaimable(id) {
		t.Error("HTLC at timelock should not be claimable")
	}
	if !mgr.IsRefundable(id) {
		t.Error("HTLC at timelock should be refundable")
	}

	if err := mgr.Refund("alice", id); err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if mgr.IsClaimable(id) || mgr.IsRefundable(id) {
		t.Error("Resolved HTLC should be neither claimable nor refundable")
	}

	if mgr.IsExpired(999) || mgr.IsClaimable(999) || mgr.IsRefundable(999) {
		t.Error("Unknown id predicates should all be false")
	}
}

func TestEventsPersisted(t *testing.T) {
	mgr, store, clk := newTestManager(t)
	fund(t, store, "alice", 1000)
	preimage, hashLock := secretPair("s1")

	var sinkKinds []string
	mgr.SetEventSink(func(kind string, htlcID *uint64, payload interface{}) {
		sinkKinds = append(sinkKinds, kind)
	})

	id, _ := mgr.Create("alice", "bob", 400, hashLock, 150)
	clk.Advance(5)
	if err := mgr.Claim("bob", id, preimage); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	events, err := store.ListEvents(storage.EventFilter{})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	// Newest first.
	if events[0].Kind != EventClaimed || events[1].Kind != EventCreated {
		t.Errorf("Unexpected event order: %s, %s", events[0].Kind, events[1].Kind)
	}

	if len(sinkKinds) != 2 || sinkKinds[0] != EventCreated || sinkKinds[1] != EventClaimed {
		t.Errorf("Unexpected sink deliveries: %v", sinkKinds)
	}
}

func TestDenseIDsAcrossFailures(t *testing.T) {
	mgr, store, _ := newTestManager(t)
	fund(t, store, "alice", 500)
	_, hashLock := secretPair("s1")

	id1, err := mgr.Create("alice", "bob", 200, hashLock, 150)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := mgr.Create("alice", "bob", 5000, hashLock, 150); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	id2, err := mgr.Create("alice", "bob", 200, hashLock, 150)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if id1 != 1 || id2 != 2 {
		t.Errorf("Expected dense ids 1 and 2, got %d and %d", id1, id2)
	}
	if counter := mgr.Counter(); counter != 2 {
		t.Errorf("Expected counter 2, got %d", counter)
	}
}
