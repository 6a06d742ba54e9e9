package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/artpar/chainforge/internal/shell/credential"
	"github.com/artpar/chainforge/internal/shell/store"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Network      NetworkConfig      `mapstructure:"network"`
	Credential   credential.Config  `mapstructure:"credential"`
	Forge        ForgeConfig        `mapstructure:"forge"`
	State        StateConfig        `mapstructure:"state"`
	Deploy       DeployConfig       `mapstructure:"deploy"`
	Verification VerificationConfig `mapstructure:"verification"`
	Plan         PlanConfig         `mapstructure:"plan"`
	Log          LogConfig          `mapstructure:"log"`
}

// NetworkConfig describes the target chain.
type NetworkConfig struct {
	Name   string `mapstructure:"name"`
	RPCURL string `mapstructure:"rpc_url"`
	// ChainID is checked against the RPC endpoint when non-zero.
	ChainID uint64 `mapstructure:"chain_id"`

	Legacy           bool   `mapstructure:"legacy"`
	Broadcast        bool   `mapstructure:"broadcast"`
	GasPrice         string `mapstructure:"gas_price"`
	PriorityGasPrice string `mapstructure:"priority_gas_price"`
	ExtraArgs        string `mapstructure:"extra_args"`
}

// ForgeConfig holds the build toolchain configuration.
type ForgeConfig struct {
	Binary      string        `mapstructure:"binary"`
	CastBinary  string        `mapstructure:"cast_binary"`
	ProjectRoot string        `mapstructure:"project_root"`
	Profile     string        `mapstructure:"profile"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StateConfig selects where deployment state is kept.
type StateConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// DeployConfig holds deployment behavior.
type DeployConfig struct {
	ConfirmDelay   time.Duration `mapstructure:"confirm_delay"`
	ConfirmChecks  int           `mapstructure:"confirm_checks"`
	Force          []string      `mapstructure:"force"`
	ForceAll       bool          `mapstructure:"force_all"`
	RerunPostSteps bool          `mapstructure:"rerun_post_steps"`
}

// VerificationConfig holds source verification configuration.
type VerificationConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	License          string        `mapstructure:"license"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	PollDelay        time.Duration `mapstructure:"poll_delay"`
	Timeout          time.Duration `mapstructure:"timeout"`
	TransportRetries int           `mapstructure:"transport_retries"`
}

// PlanConfig locates the plan file.
type PlanConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Every key needs a default so AutomaticEnv can see it.
	v.SetDefault("network.name", "anvil")
	v.SetDefault("network.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("network.chain_id", 0)
	v.SetDefault("network.legacy", false)
	v.SetDefault("network.broadcast", true)
	v.SetDefault("network.gas_price", "")
	v.SetDefault("network.priority_gas_price", "")
	v.SetDefault("network.extra_args", "")

	v.SetDefault("credential.private_key", "")
	v.SetDefault("credential.sealed_key", "")
	v.SetDefault("credential.passphrase", "")
	v.SetDefault("credential.keyring_service", credential.DefaultKeyringService)
	v.SetDefault("credential.keyring_user", "")

	v.SetDefault("forge.binary", "forge")
	v.SetDefault("forge.cast_binary", "cast")
	v.SetDefault("forge.project_root", ".")
	v.SetDefault("forge.profile", "")
	v.SetDefault("forge.timeout", "5m")

	v.SetDefault("state.backend", store.BackendFile)
	v.SetDefault("state.path", "")
	v.SetDefault("state.dsn", "")

	v.SetDefault("deploy.confirm_delay", "30s")
	v.SetDefault("deploy.confirm_checks", 2)
	v.SetDefault("deploy.force", []string{})
	v.SetDefault("deploy.force_all", false)
	v.SetDefault("deploy.rerun_post_steps", false)

	v.SetDefault("verification.enabled", false)
	v.SetDefault("verification.base_url", "")
	v.SetDefault("verification.api_key", "")
	v.SetDefault("verification.license", "none")
	v.SetDefault("verification.max_attempts", 3)
	v.SetDefault("verification.poll_delay", "15s")
	v.SetDefault("verification.timeout", "30s")
	v.SetDefault("verification.transport_retries", 2)

	v.SetDefault("plan.path", "deployments/plan.yaml")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("CHAINFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names foundry users already export.
	_ = v.BindEnv("credential.private_key", "CHAINFORGE_CREDENTIAL_PRIVATE_KEY", "PRIVATE_KEY")
	_ = v.BindEnv("network.rpc_url", "CHAINFORGE_NETWORK_RPC_URL", "RPC_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Deploy.Force = splitList(cfg.Deploy.Force)

	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Network.Name == "" {
		return fmt.Errorf("%w: network.name is required", ErrInvalidConfig)
	}
	switch c.State.Backend {
	case store.BackendFile, store.BackendSQLite, store.BackendMemory:
	case store.BackendPostgres:
		if c.State.DSN == "" {
			return fmt.Errorf("%w: state.dsn is required for the postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown state.backend %q", ErrInvalidConfig, c.State.Backend)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json", ErrInvalidConfig)
	}
	if c.Plan.Path == "" {
		return fmt.Errorf("%w: plan.path is required", ErrInvalidConfig)
	}
	return nil
}

// ValidateDeploy checks the settings needed to send transactions.
func (c *Config) ValidateDeploy() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Network.RPCURL == "" {
		return fmt.Errorf("%w: network.rpc_url is required", ErrInvalidConfig)
	}
	if c.Deploy.ConfirmChecks < 1 {
		return fmt.Errorf("%w: deploy.confirm_checks must be at least 1", ErrInvalidConfig)
	}
	if c.Verification.Enabled {
		if c.Verification.BaseURL == "" {
			return fmt.Errorf("%w: verification.base_url is required when verification is enabled", ErrInvalidConfig)
		}
		if c.Verification.MaxAttempts < 1 {
			return fmt.Errorf("%w: verification.max_attempts must be at least 1", ErrInvalidConfig)
		}
	}
	return nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Logs go to stderr; stdout carries the summary.
func SetupLogger(cfg *Config) *slog.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
