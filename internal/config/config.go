// Package config provides configuration management for the Safety
// Guardrail Engine. The per-repository safety policy is loaded from
// (highest to lowest priority):
// 1. Explicit in-process overrides (e.g. from CLI flags)
// 2. Environment variables (SGE_*)
// 3. Project config (<repo>/.sge/safety-config.json, spec §6)
// 4. Home config (~/.sge/config.yaml, ambient CLI preferences only)
// 5. Defaults
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ScannerOverride is one entry of Config.Guardrails (spec §3).
type ScannerOverride struct {
	Enabled  *bool          `json:"enabled,omitempty"`
	Severity string         `json:"severity,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// RollbackConfig is Config.Rollback (spec §3).
type RollbackConfig struct {
	Enabled             bool `json:"enabled"`
	AutoRollbackOnBlock bool `json:"auto_rollback_on_block"`
	CreateCheckpoints   bool `json:"create_checkpoints"`
}

// SandboxConfig is Config.Sandbox (spec §3).
type SandboxConfig struct {
	Enabled          bool    `json:"enabled"`
	Image            string  `json:"image"`
	CPUFraction      float64 `json:"cpu_fraction"`
	MemoryBytes      int64   `json:"memory_bytes"`
	TimeoutSeconds   int     `json:"timeout"`
	NetworkIsolation bool    `json:"network_isolation"`
	MountWorkspace   bool    `json:"mount_workspace"`
}

// Config is the Safety Guardrail Engine's single source of policy
// truth (spec §3 "Config").
type Config struct {
	Guardrails       map[string]ScannerOverride `json:"guardrails"`
	Rollback         RollbackConfig             `json:"rollback"`
	Sandbox          SandboxConfig              `json:"sandbox"`
	PerRepoOverrides map[string]Config          `json:"per_repo_overrides,omitempty"`
}

// CLIPreferences holds ambient, non-policy preferences read from the
// home config (output format, verbosity) — not part of the spec's
// Config shape, but carried the way the project's CLI front-end has
// always carried such settings.
type CLIPreferences struct {
	Output  string `yaml:"output"`
	Verbose bool   `yaml:"verbose"`
}

// ProjectConfigRelPath is where the safety config lives relative to a
// repository root (spec §6 "Configuration file").
const ProjectConfigRelPath = ".sge/safety-config.json"

// Default returns the documented default Config (spec §6): all
// scanners enabled at their default severities (an empty Guardrails
// map means "no override", which the registry interprets as
// default-enabled/default-severity); rollback enabled with
// auto-rollback on block; sandbox disabled at cpu_fraction=0.5,
// memory=512 MiB, timeout=60s.
func Default() Config {
	return Config{
		Guardrails: map[string]ScannerOverride{},
		Rollback: RollbackConfig{
			Enabled:             true,
			AutoRollbackOnBlock: true,
			CreateCheckpoints:   true,
		},
		Sandbox: SandboxConfig{
			Enabled:        false,
			Image:          "sge-sandbox:latest",
			CPUFraction:    0.5,
			MemoryBytes:    512 * 1024 * 1024,
			TimeoutSeconds: 60,
		},
	}
}

// Load resolves the effective Config for repoPath with the documented
// precedence: defaults, then the project's .sge/safety-config.json,
// then environment variables, then an explicit override.
func Load(repoPath string, override *Config) (Config, error) {
	cfg := Default()

	projectCfg, err := loadProjectConfig(filepath.Join(repoPath, ProjectConfigRelPath))
	if err != nil {
		return Config{}, err
	}
	if projectCfg != nil {
		cfg = merge(cfg, *projectCfg)
	}

	cfg = applyEnv(cfg)

	if override != nil {
		cfg = merge(cfg, *override)
	}

	return cfg, nil
}

// loadProjectConfig reads the JSON safety config. A missing file yields
// (nil, nil) — the caller keeps defaults (spec §6).
func loadProjectConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadCLIPreferences reads ~/.sge/config.yaml, the home-level ambient
// preferences file. A missing or invalid file yields the default
// preferences rather than an error.
func LoadCLIPreferences() CLIPreferences {
	home, err := os.UserHomeDir()
	if err != nil {
		return CLIPreferences{Output: "table"}
	}
	data, err := os.ReadFile(filepath.Join(home, ".sge", "config.yaml"))
	if err != nil {
		return CLIPreferences{Output: "table"}
	}
	var prefs CLIPreferences
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return CLIPreferences{Output: "table"}
	}
	if prefs.Output == "" {
		prefs.Output = "table"
	}
	return prefs
}

// applyEnv applies SGE_* environment variable overrides on top of cfg.
func applyEnv(cfg Config) Config {
	if v := os.Getenv("SGE_ROLLBACK_ENABLED"); v != "" {
		cfg.Rollback.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SGE_AUTO_ROLLBACK_ON_BLOCK"); v != "" {
		cfg.Rollback.AutoRollbackOnBlock = v == "true" || v == "1"
	}
	if v := os.Getenv("SGE_SANDBOX_ENABLED"); v != "" {
		cfg.Sandbox.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SGE_SANDBOX_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sandbox.TimeoutSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SGE_SANDBOX_IMAGE")); v != "" {
		cfg.Sandbox.Image = v
	}
	return cfg
}

// merge overlays non-zero fields of override onto base. Guardrails and
// PerRepoOverrides entries are merged key-by-key rather than replaced
// wholesale, matching spec §4.3's "update_config... merges".
func merge(base, override Config) Config {
	if override.Guardrails != nil {
		if base.Guardrails == nil {
			base.Guardrails = map[string]ScannerOverride{}
		}
		for id, o := range override.Guardrails {
			base.Guardrails[id] = o
		}
	}
	if override.Rollback != (RollbackConfig{}) {
		base.Rollback = override.Rollback
	}
	if override.Sandbox != (SandboxConfig{}) {
		base.Sandbox = override.Sandbox
	}
	if override.PerRepoOverrides != nil {
		if base.PerRepoOverrides == nil {
			base.PerRepoOverrides = map[string]Config{}
		}
		for id, o := range override.PerRepoOverrides {
			base.PerRepoOverrides[id] = o
		}
	}
	return base
}

// EffectiveForRepo applies repoID's per-repo override, if any, on top
// of cfg (spec §3 "per_repo_overrides: map<repo_id, partial Config>").
func EffectiveForRepo(cfg Config, repoID string) Config {
	override, ok := cfg.PerRepoOverrides[repoID]
	if !ok {
		return cfg
	}
	return merge(cfg, override)
}
