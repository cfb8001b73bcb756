package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meridian-exchange/escrowd/internal/storage"
)

// ========================================
// Node handlers
// ========================================

// NodeInfoResult is the response for node_info.
type NodeInfoResult struct {
	Owner         string `json:"owner"`
	EscrowAccount string `json:"escrow_account"`
	Height        uint64 `json:"height"`
	Uptime        string `json:"uptime"`
	Version       string `json:"version"`
	DataDir       string `json:"data_dir"`
}

func (s *Server) nodeInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return &NodeInfoResult{
		Owner:         s.manager.Owner(),
		EscrowAccount: s.manager.EscrowAccount(),
		Height:        s.clock.CurrentHeight(),
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		Version:       Version,
		DataDir:       s.dataDir,
	}, nil
}

// NodeStatusResult is the response for node_status.
type NodeStatusResult struct {
	Running    bool   `json:"running"`
	Height     uint64 `json:"height"`
	GateActive bool   `json:"gate_active"`
	HTLCCount  uint64 `json:"htlc_count"`
	Active     int    `json:"active"`
	Uptime     string `json:"uptime"`
	WSClients  int    `json:"ws_clients"`
}

func (s *Server) nodeStatus(ctx context.Context, params json.RawMessage) (interface{}, error) {
	active := 0
	if s.store != nil {
		status := storage.StatusActive
		count, err := s.store.CountHTLCs(&status)
		if err == nil {
			active = count
		}
	}

	wsClients := 0
	if s.wsHub != nil {
		wsClients = s.wsHub.ClientCount()
	}

	return &NodeStatusResult{
		Running:    true,
		Height:     s.clock.CurrentHeight(),
		GateActive: s.manager.GateActive(),
		HTLCCount:  s.manager.Counter(),
		Active:     active,
		Uptime:     time.Since(s.startTime).Round(time.Second).String(),
		WSClients:  wsClients,
	}, nil
}

// ========================================
// Admin handlers
// ========================================

// AdminGateParams is the parameters for admin_pause and admin_resume.
type AdminGateParams struct {
	Caller string `json:"caller"`
}

func (s *Server) adminPause(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p AdminGateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if err := s.manager.Pause(p.Caller); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"success": true,
		"active":  false,
	}, nil
}

func (s *Server) adminResume(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p AdminGateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	if err := s.manager.Resume(p.Caller); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"success": true,
		"active":  true,
	}, nil
}

func (s *Server) adminGateState(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return map[string]bool{"active": s.manager.GateActive()}, nil
}
