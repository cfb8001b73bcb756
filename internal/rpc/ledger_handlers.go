package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meridian-exchange/escrowd/internal/escrow"
	"github.com/meridian-exchange/escrowd/internal/storage"
)

// ========================================
// Ledger handlers
// ========================================

// LedgerBalanceParams is the parameters for ledger_balance.
type LedgerBalanceParams struct {
	Account string `json:"account"`
}

// LedgerBalanceResult is the response for ledger_balance.
type LedgerBalanceResult struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

func (s *Server) ledgerBalance(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p LedgerBalanceParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if p.Account == "" {
		return nil, fmt.Errorf("account is required")
	}

	balance, err := s.store.GetBalance(p.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	return &LedgerBalanceResult{
		Account: p.Account,
		Balance: balance,
	}, nil
}

// LedgerCreditParams is the parameters for ledger_credit.
type LedgerCreditParams struct {
	Caller  string `json:"caller"`
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

// ledgerCredit mints funds into an account. Owner only.
func (s *Server) ledgerCredit(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p LedgerCreditParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if p.Caller != s.manager.Owner() {
		return nil, escrow.ErrUnauthorized
	}
	if p.Account == "" {
		return nil, fmt.Errorf("account is required")
	}
	if p.Amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	if err := s.store.Credit(p.Account, p.Amount); err != nil {
		return nil, fmt.Errorf("failed to credit: %w", err)
	}

	balance, err := s.store.GetBalance(p.Account)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	return &LedgerBalanceResult{
		Account: p.Account,
		Balance: balance,
	}, nil
}

// AccountInfo represents a ledger account in RPC responses.
type AccountInfo struct {
	Name    string `json:"name"`
	Balance uint64 `json:"balance"`
}

// LedgerListResult is the response for ledger_list.
type LedgerListResult struct {
	Accounts []AccountInfo `json:"accounts"`
	Count    int           `json:"count"`
}

func (s *Server) ledgerList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	accounts, err := s.store.ListAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	result := make([]AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, AccountInfo{Name: a.Name, Balance: a.Balance})
	}

	return &LedgerListResult{
		Accounts: result,
		Count:    len(result),
	}, nil
}

// ========================================
// Event handlers
// ========================================

// EventsListParams is the parameters for events_list.
type EventsListParams struct {
	Kind   string  `json:"kind,omitempty"`
	HTLCID *uint64 `json:"htlc_id,omitempty"`
	Limit  int     `json:"limit,omitempty"`
	Offset int     `json:"offset,omitempty"`
}

// EventInfo represents a persisted event in RPC responses.
type EventInfo struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	HTLCID    *uint64         `json:"htlc_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt int64           `json:"emitted_at"`
}

// EventsListResult is the response for events_list.
type EventsListResult struct {
	Events []EventInfo `json:"events"`
	Count  int         `json:"count"`
}

func (s *Server) eventsList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EventsListParams
	if params != nil {
		json.Unmarshal(params, &p)
	}

	if p.Limit == 0 {
		p.Limit = 100
	}

	records, err := s.store.ListEvents(storage.EventFilter{
		Kind:   p.Kind,
		HTLCID: p.HTLCID,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	result := make([]EventInfo, 0, len(records))
	for _, r := range records {
		result = append(result, EventInfo{
			ID:        r.ID,
			Kind:      r.Kind,
			HTLCID:    r.HTLCID,
			Payload:   json.RawMessage(r.Payload),
			EmittedAt: r.EmittedAt.Unix(),
		})
	}

	return &EventsListResult{
		Events: result,
		Count:  len(result),
	}, nil
}
