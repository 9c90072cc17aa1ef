package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[chain]
rpc_endpoint = "http://localhost:8545"
registry_address = "0x0000000000000000000000000000000000000abc"

[schedule]
tick_interval = "30s"
max_bots = 12

[simulation]
trade_probability = 0.5

[profiles."7"]
name = "Seven"
handle = "@seven"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Schedule.TickInterval.Duration != 30*time.Second {
		t.Errorf("expected 30s tick interval, got %s", cfg.Schedule.TickInterval.Duration)
	}
	if cfg.Schedule.MaxBots != 12 {
		t.Errorf("expected max_bots 12, got %d", cfg.Schedule.MaxBots)
	}
	if cfg.Simulation.TradeProbability != 0.5 {
		t.Errorf("expected trade probability 0.5, got %v", cfg.Simulation.TradeProbability)
	}
	// Untouched sections keep their defaults.
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay.Duration != time.Second {
		t.Errorf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Simulation.DefaultCooldownSeconds != 300 {
		t.Errorf("expected default cooldown 300, got %d", cfg.Simulation.DefaultCooldownSeconds)
	}

	p, ok := cfg.Profile(7)
	if !ok || p.Handle != "@seven" {
		t.Errorf("expected profile for bot 7, got %+v (ok=%v)", p, ok)
	}
	if _, ok := cfg.Profile(8); ok {
		t.Error("expected no profile for bot 8")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Backend != "auto" {
		t.Errorf("expected auto backend, got %q", cfg.Storage.Backend)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BOTPULSE_CHAIN_RPC_ENDPOINT", "http://rpc.example")
	t.Setenv("BOTPULSE_SCHEDULE_TICK_INTERVAL", "2m")
	t.Setenv("BOTPULSE_API_ADMIN_TOKEN", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chain.RPCEndpoint != "http://rpc.example" {
		t.Errorf("expected env rpc url, got %q", cfg.Chain.RPCEndpoint)
	}
	if cfg.Schedule.TickInterval.Duration != 2*time.Minute {
		t.Errorf("expected 2m tick interval, got %s", cfg.Schedule.TickInterval.Duration)
	}
	if cfg.API.AdminToken != "secret" {
		t.Errorf("expected admin token from env, got %q", cfg.API.AdminToken)
	}
}

func TestLoad_IgnoresUnprefixedEnv(t *testing.T) {
	t.Setenv("PATH", "/usr/bin:/bin")
	t.Setenv("VERSION", "leaked")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ADMIN_TOKEN", "leaked")
	t.Setenv("DSN", "postgres://leaked")
	t.Setenv("BACKEND", "postgres")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	if cfg.Storage.Path != def.Storage.Path {
		t.Errorf("storage.path taken from $PATH: %q", cfg.Storage.Path)
	}
	if cfg.Storage.Backend != def.Storage.Backend || cfg.Storage.DSN != "" {
		t.Errorf("storage taken from unprefixed env: %+v", cfg.Storage)
	}
	if cfg.General.Version != def.General.Version || cfg.General.LogLevel != def.General.LogLevel {
		t.Errorf("general taken from unprefixed env: %+v", cfg.General)
	}
	if cfg.API.AdminToken != "" {
		t.Errorf("admin token taken from unprefixed env: %q", cfg.API.AdminToken)
	}
}

func TestLoad_PrefixedEnvDerivedFromFieldNames(t *testing.T) {
	t.Setenv("BOTPULSE_STORAGE_PATH", "/var/lib/botpulse/bp.db")
	t.Setenv("BOTPULSE_API_REDIS_PASSWORD", "hunter2")
	t.Setenv("BOTPULSE_CHAIN_CHAIN_ID", "10143")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Path != "/var/lib/botpulse/bp.db" {
		t.Errorf("expected env storage path, got %q", cfg.Storage.Path)
	}
	if cfg.API.RedisPassword != "hunter2" {
		t.Errorf("expected env redis password, got %q", cfg.API.RedisPassword)
	}
	if cfg.Chain.ChainID != 10143 {
		t.Errorf("expected env chain id, got %d", cfg.Chain.ChainID)
	}
}

func TestValidate_MissingRegistry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chain.RPCEndpoint = "http://localhost:8545"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingRegistry) {
		t.Errorf("expected ErrMissingRegistry, got %v", err)
	}
}

func TestValidate_MissingRPC(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingRPCEndpoint) {
		t.Errorf("expected ErrMissingRPCEndpoint, got %v", err)
	}
}

func TestValidate_TradeProbabilityRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chain.RPCEndpoint = "http://localhost:8545"
	cfg.Chain.RegistryAddress = "0xabc"
	cfg.Simulation.TradeProbability = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for trade probability above 1")
	}
}
