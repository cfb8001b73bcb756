package rpc

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/meridian-exchange/escrowd/internal/storage"
	"github.com/meridian-exchange/escrowd/pkg/helpers"
)

// ========================================
// Escrow handlers
// ========================================

// EscrowCreateParams is the parameters for escrow_create.
type EscrowCreateParams struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	HashLock  string `json:"hash_lock"` // SHA256 digest, hex
	Timelock  uint64 `json:"timelock"`  // Block height
}

// EscrowCreateResult is the response for escrow_create.
type EscrowCreateResult struct {
	ID uint64 `json:"id"`
}

// HTLCInfo represents an HTLC in RPC responses.
type HTLCInfo struct {
	ID         uint64  `json:"id"`
	Sender     string  `json:"sender"`
	Recipient  string  `json:"recipient"`
	Amount     uint64  `json:"amount"`
	HashLock   string  `json:"hash_lock"`
	Timelock   uint64  `json:"timelock"`
	Status     string  `json:"status"`
	CreatedAt  uint64  `json:"created_at"`
	ResolvedAt *uint64 `json:"resolved_at,omitempty"`
}

func htlcToInfo(h *storage.HTLC) HTLCInfo {
	return HTLCInfo{
		ID:         h.ID,
		Sender:     h.Sender,
		Recipient:  h.Recipient,
		Amount:     h.Amount,
		HashLock:   helpers.BytesToHex(h.HashLock),
		Timelock:   h.Timelock,
		Status:     string(h.Status),
		CreatedAt:  h.CreatedAt,
		ResolvedAt: h.ResolvedAt,
	}
}

func (s *Server) escrowCreate(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EscrowCreateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if p.Sender == "" {
		return nil, fmt.Errorf("sender is required")
	}

	hashLock, err := helpers.HexToHash32(p.HashLock)
	if err != nil {
		return nil, fmt.Errorf("invalid hash_lock: %w", err)
	}

	id, err := s.manager.Create(p.Sender, p.Recipient, p.Amount, hashLock, p.Timelock)
	if err != nil {
		return nil, err
	}

	return &EscrowCreateResult{ID: id}, nil
}

// EscrowClaimParams is the parameters for escrow_claim.
type EscrowClaimParams struct {
	Caller   string `json:"caller"`
	ID       uint64 `json:"id"`
	Preimage string `json:"preimage"` // Hex
}

func (s *Server) escrowClaim(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EscrowClaimParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if p.Caller == "" {
		return nil, fmt.Errorf("caller is required")
	}

	preimage, err := helpers.HexToBytes(p.Preimage)
	if err != nil {
		return nil, fmt.Errorf("invalid preimage: %w", err)
	}

	if err := s.manager.Claim(p.Caller, p.ID, preimage); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"success": true,
		"id":      p.ID,
	}, nil
}

// EscrowRefundParams is the parameters for escrow_refund.
type EscrowRefundParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

func (s *Server) escrowRefund(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EscrowRefundParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if p.Caller == "" {
		return nil, fmt.Errorf("caller is required")
	}

	if err := s.manager.Refund(p.Caller, p.ID); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"success": true,
		"id":      p.ID,
	}, nil
}

// EscrowIDParams is the parameters for id-keyed escrow queries.
type EscrowIDParams struct {
	ID uint64 `json:"id"`
}

// EscrowGetResult is the response for escrow_get.
type EscrowGetResult struct {
	Found bool      `json:"found"`
	HTLC  *HTLCInfo `json:"htlc,omitempty"`
}

func (s *Server) escrowGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EscrowIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	h, ok := s.manager.Get(p.ID)
	if !ok {
		return &EscrowGetResult{Found: false}, nil
	}

	info := htlcToInfo(h)
	return &EscrowGetResult{Found: true, HTLC: &info}, nil
}

// ClaimInfo represents a claim record in RPC responses.
type ClaimInfo struct {
	HTLCID    uint64 `json:"htlc_id"`
	Claimer   string `json:"claimer"`
	Preimage  string `json:"preimage"`
	ClaimedAt uint64 `json:"claimed_at"`
}

// EscrowGetClaimResult is the response for escrow_getClaim.
type EscrowGetClaimResult struct {
	Found bool       `json:"found"`
	Claim *ClaimInfo `json:"claim,omitempty"`
}

func (s *Server) escrowGetClaim(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EscrowIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	c, ok := s.manager.GetClaim(p.ID)
	if !ok {
		return &EscrowGetClaimResult{Found: false}, nil
	}

	return &EscrowGetClaimResult{
		Found: true,
		Claim: &ClaimInfo{
			HTLCID:    c.HTLCID,
			Claimer:   c.Claimer,
			Preimage:  helpers.BytesToHex(c.Preimage),
			ClaimedAt: c.ClaimedAt,
		},
	}, nil
}

// EscrowCountResult is the response for escrow_count.
type EscrowCountResult struct {
	Count uint64 `json:"count"`
}

func (s *Server) escrowCount(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return &EscrowCountResult{Count: s.manager.Counter()}, nil
}

// EscrowListParams is the parameters for escrow_list.
type EscrowListParams struct {
	Status    string `json:"status,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// EscrowListResult is the response for escrow_list.
type EscrowListResult struct {
	HTLCs []HTLCInfo `json:"htlcs"`
	Count int        `json:"count"`
}

func (s *Server) escrowList(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EscrowListParams
	if params != nil {
		json.Unmarshal(params, &p)
	}

	if p.Limit == 0 {
		p.Limit = 100
	}

	filter := storage.HTLCFilter{
		Sender:    p.Sender,
		Recipient: p.Recipient,
		Limit:     p.Limit,
		Offset:    p.Offset,
	}
	if p.Status != "" {
		status := storage.Status(p.Status)
		filter.Status = &status
	}

	htlcs, err := s.manager.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list htlcs: %w", err)
	}

	result := make([]HTLCInfo, 0, len(htlcs))
	for _, h := range htlcs {
		result = append(result, htlcToInfo(h))
	}

	return &EscrowListResult{
		HTLCs: result,
		Count: len(result),
	}, nil
}

func (s *Server) escrowIsExpired(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EscrowIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return map[string]bool{"expired": s.manager.IsExpired(p.ID)}, nil
}

func (s *Server) escrowIsClaimable(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EscrowIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return map[string]bool{"claimable": s.manager.IsClaimable(p.ID)}, nil
}

func (s *Server) escrowIsRefundable(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p EscrowIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	return map[string]bool{"refundable": s.manager.IsRefundable(p.ID)}, nil
}

// EscrowNewSecretResult is the response for escrow_newSecret.
type EscrowNewSecretResult struct {
	Preimage string `json:"preimage"`
	HashLock string `json:"hash_lock"`
}

// escrowNewSecret generates a fresh preimage and its SHA256 hash lock.
// Convenience for clients that cannot generate secure randomness.
func (s *Server) escrowNewSecret(ctx context.Context, params json.RawMessage) (interface{}, error) {
	preimage, err := helpers.GenerateSecureRandom(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	digest := sha256.Sum256(preimage)

	return &EscrowNewSecretResult{
		Preimage: helpers.BytesToHex(preimage),
		HashLock: helpers.BytesToHex(digest[:]),
	}, nil
}
