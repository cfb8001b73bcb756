// Package config holds the escrowd daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the escrowd daemon.
type Config struct {
	// Owner is the account allowed to pause/resume the escrow gate and
	// credit ledger accounts.
	Owner string `yaml:"owner"`

	// EscrowAccount is the custodian account that holds locked funds.
	// It must not collide with any user account.
	EscrowAccount string `yaml:"escrow_account"`

	// Escrow holds escrow state-machine settings.
	Escrow EscrowConfig `yaml:"escrow"`

	// Chain holds height-source settings.
	Chain ChainConfig `yaml:"chain"`

	// Storage holds storage settings.
	Storage StorageConfig `yaml:"storage"`

	// Logging holds logging settings.
	Logging LoggingConfig `yaml:"logging"`
}

// EscrowConfig holds escrow state-machine settings.
type EscrowConfig struct {
	// MinLockBlocks is the minimum distance between the current height and
	// a new HTLC's timelock.
	MinLockBlocks uint64 `yaml:"min_lock_blocks"`
}

// ChainConfig holds height-source settings.
type ChainConfig struct {
	// GenesisUnix is the genesis timestamp (unix seconds) heights are
	// counted from. Zero means "daemon start".
	GenesisUnix int64 `yaml:"genesis_unix"`

	// BlockInterval is the duration of one block.
	BlockInterval Duration `yaml:"block_interval"`
}

// Duration wraps time.Duration so config files can use readable values
// like "10m" or "90s".
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Accepts duration strings
// and plain integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory for all data files.
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Owner:         "owner",
		EscrowAccount: "escrow-vault",
		Escrow: EscrowConfig{
			// One hour of ten-minute blocks.
			MinLockBlocks: 6,
		},
		Chain: ChainConfig{
			GenesisUnix:   0,
			BlockInterval: Duration(10 * time.Minute),
		},
		Storage: StorageConfig{
			DataDir: "~/.escrowd",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("owner account is required")
	}
	if c.EscrowAccount == "" {
		return fmt.Errorf("escrow account is required")
	}
	if c.EscrowAccount == c.Owner {
		return fmt.Errorf("escrow account must differ from the owner account")
	}
	if c.Escrow.MinLockBlocks == 0 {
		return fmt.Errorf("min_lock_blocks must be positive")
	}
	if c.Chain.BlockInterval <= 0 {
		return fmt.Errorf("block_interval must be positive")
	}
	return nil
}

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// Path returns the config file path inside a data directory.
func Path(dataDir string) string {
	return filepath.Join(expandPath(dataDir), ConfigFileName)
}

// Load loads configuration from a YAML file in dataDir.
// If the file doesn't exist, it creates one with default values.
func Load(dataDir string) (*Config, error) {
	configPath := Path(dataDir)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}

		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# escrowd configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
