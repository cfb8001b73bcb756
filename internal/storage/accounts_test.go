package storage

import (
	"errors"
	"os"
	"testing"
)

func TestCreditAndBalance(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "escrowd-accounts-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := New(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	// Unknown accounts have zero balance
	balance, err := store.GetBalance("alice")
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if balance != 0 {
		t.Errorf("GetBalance(unknown) = %d, want 0", balance)
	}

	if err := store.Credit("alice", 500); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}
	if err := store.Credit("alice", 250); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}

	balance, _ = store.GetBalance("alice")
	if balance != 750 {
		t.Errorf("GetBalance(alice) = %d, want 750", balance)
	}
}

func TestTransfer(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "escrowd-accounts-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := New(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	if err := store.Credit("alice", 1000); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}

	if err := store.Transfer("alice", "bob", 400); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}

	aliceBalance, _ := store.GetBalance("alice")
	bobBalance, _ := store.GetBalance("bob")
	if aliceBalance != 600 {
		t.Errorf("alice balance = %d, want 600", aliceBalance)
	}
	if bobBalance != 400 {
		t.Errorf("bob balance = %d, want 400", bobBalance)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "escrowd-accounts-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := New(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	if err := store.Credit("alice", 100); err != nil {
		t.Fatalf("Credit() error = %v", err)
	}

	err = store.Transfer("alice", "bob", 200)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Transfer() error = %v, want ErrInsufficientFunds", err)
	}

	// No partial effect
	aliceBalance, _ := store.GetBalance("alice")
	bobBalance, _ := store.GetBalance("bob")
	if aliceBalance != 100 {
		t.Errorf("alice balance = %d, want 100", aliceBalance)
	}
	if bobBalance != 0 {
		t.Errorf("bob balance = %d, want 0", bobBalance)
	}

	// Transfers from unknown accounts fail the same way
	err = store.Transfer("nobody", "bob", 1)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Transfer(unknown) error = %v, want ErrInsufficientFunds", err)
	}
}

func TestListAccounts(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "escrowd-accounts-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := New(&Config{DataDir: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	for name, amount := range map[string]uint64{"carol": 3, "alice": 1, "bob": 2} {
		if err := store.Credit(name, amount); err != nil {
			t.Fatalf("Credit(%s) error = %v", name, err)
		}
	}

	accounts, err := store.ListAccounts()
	if err != nil {
		t.Fatalf("ListAccounts() error = %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("ListAccounts() returned %d accounts, want 3", len(accounts))
	}
	if accounts[0].Name != "alice" || accounts[2].Name != "carol" {
		t.Errorf("accounts not ordered by name: %s, %s, %s",
			accounts[0].Name, accounts[1].Name, accounts[2].Name)
	}
}
