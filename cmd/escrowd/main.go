// Package main provides the escrowd daemon - an HTLC escrow node.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/meridian-exchange/escrowd/internal/clock"
	"github.com/meridian-exchange/escrowd/internal/config"
	"github.com/meridian-exchange/escrowd/internal/escrow"
	"github.com/meridian-exchange/escrowd/internal/rpc"
	"github.com/meridian-exchange/escrowd/internal/storage"
	"github.com/meridian-exchange/escrowd/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	// Parse flags
	var (
		dataDir     = flag.String("data-dir", "~/.escrowd", "Data directory")
		apiAddr     = flag.String("api", "127.0.0.1:8080", "JSON-RPC API address")
		owner       = flag.String("owner", "", "Owner account, overrides config")
		minLock     = flag.Uint64("min-lock", 0, "Minimum lock duration in blocks, overrides config")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	// Set up logging (initial, may be overridden by config)
	log := logging.New(&logging.Config{
		Level:      *logLevel,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("escrowd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	// Load or create config file
	cfg, err := config.Load(*dataDir)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Apply CLI overrides (CLI flags take precedence over config file)
	cfg.Storage.DataDir = *dataDir
	cfg.Logging.Level = *logLevel
	if *owner != "" {
		cfg.Owner = *owner
	}
	if *minLock != 0 {
		cfg.Escrow.MinLockBlocks = *minLock
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config", "error", err)
	}

	// Update logging with config level
	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	log.Info("Config loaded", "path", config.Path(*dataDir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	dataPath := expandPath(cfg.Storage.DataDir)
	store, err := storage.New(&storage.Config{DataDir: dataPath})
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", dataPath)

	// Resolve the genesis timestamp. First boot persists it so heights
	// stay stable across restarts.
	genesis, err := resolveGenesis(store, cfg)
	if err != nil {
		log.Fatal("Failed to resolve genesis", "error", err)
	}

	clk := clock.NewIntervalClock(genesis, cfg.Chain.BlockInterval.Std())
	log.Info("Height source initialized",
		"genesis", genesis.Format(time.RFC3339),
		"interval", cfg.Chain.BlockInterval.Std(),
		"height", clk.CurrentHeight())

	// Create escrow manager
	mgr := escrow.NewManager(&escrow.Config{
		Store:         store,
		Clock:         clk,
		Owner:         cfg.Owner,
		EscrowAccount: cfg.EscrowAccount,
		MinLockBlocks: cfg.Escrow.MinLockBlocks,
	})
	log.Info("Escrow manager initialized",
		"owner", cfg.Owner,
		"escrow_account", cfg.EscrowAccount,
		"min_lock_blocks", cfg.Escrow.MinLockBlocks)

	// Start RPC server
	rpcServer := rpc.NewServer(mgr, store, clk, dataPath)
	if err := rpcServer.Start(*apiAddr); err != nil {
		log.Fatal("Failed to start RPC server", "error", err)
	}

	// Forward manager events to WebSocket clients
	mgr.SetEventSink(func(kind string, htlcID *uint64, payload interface{}) {
		if hub := rpcServer.WSHub(); hub != nil {
			hub.Broadcast(rpc.EscrowEventType(kind), payload)
		}
	})

	printBanner(log, cfg, *apiAddr, clk)

	// Start status ticker
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Info("Status",
					"height", clk.CurrentHeight(),
					"htlcs", mgr.Counter(),
					"gate_active", mgr.GateActive())
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("Shutting down...")

	cancel()

	if err := rpcServer.Stop(); err != nil {
		log.Error("Error stopping RPC server", "error", err)
	}

	log.Info("Goodbye!")
}

// resolveGenesis determines the genesis timestamp heights are counted
// from. Config takes precedence; otherwise the first boot's timestamp is
// persisted and reused on every later start.
func resolveGenesis(store *storage.Storage, cfg *config.Config) (time.Time, error) {
	if cfg.Chain.GenesisUnix != 0 {
		return time.Unix(cfg.Chain.GenesisUnix, 0), nil
	}

	ts, ok, err := store.GenesisUnix()
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return time.Unix(ts, 0), nil
	}

	now := time.Now()
	if err := store.SetGenesisUnix(now.Unix()); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

func printBanner(log *logging.Logger, cfg *config.Config, apiAddr string, clk *clock.IntervalClock) {
	log.Info("")
	log.Info("=================================================")
	log.Infof("  Escrow Daemon")
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  API: http://%s", apiAddr)
	log.Infof("  WS:  ws://%s/ws", apiAddr)
	log.Info("")
	log.Infof("  Owner: %s | Escrow account: %s", cfg.Owner, cfg.EscrowAccount)
	log.Infof("  Height: %d | Block interval: %s", clk.CurrentHeight(), clk.Interval())
	log.Infof("  Data dir: %s", expandPath(cfg.Storage.DataDir))
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
