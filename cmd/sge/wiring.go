package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/agentops/sge/internal/aiprovider"
	"github.com/agentops/sge/internal/auditprovider"
	"github.com/agentops/sge/internal/checkpoint"
	"github.com/agentops/sge/internal/config"
	"github.com/agentops/sge/internal/containerrt"
	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/gitprovider"
	"github.com/agentops/sge/internal/guardrail"
	"github.com/agentops/sge/internal/sandbox"
	"github.com/agentops/sge/internal/scanner"
)

// loadEffectiveConfig resolves the Config for repo (spec §6), applying
// any --config overlay as an in-process override.
func loadEffectiveConfig(repo string) (config.Config, error) {
	var override *config.Config
	if cfgOverlay != "" {
		data, err := os.ReadFile(cfgOverlay)
		if err != nil {
			return config.Config{}, fmt.Errorf("read config overlay: %w", err)
		}
		var overlay config.Config
		if err := json.Unmarshal(data, &overlay); err != nil {
			return config.Config{}, fmt.Errorf("parse config overlay: %w", err)
		}
		override = &overlay
	}
	return config.Load(repo, override)
}

// buildRegistry registers every scanner against cfg's per-scanner
// overrides (spec §4.3's register-then-configure flow). External
// providers (audit, AI model) are wired only when their credentials are
// present in the environment; scanners that need them degrade to
// Skipped findings otherwise (spec §7 ProviderError policy).
func buildRegistry(cfg config.Config, log *zap.Logger) (*guardrail.Registry, error) {
	registry := guardrail.NewRegistry(log)

	var audit scanner.AuditProvider
	if endpoint := os.Getenv("SGE_AUDIT_ENDPOINT"); endpoint != "" {
		audit = auditprovider.New(endpoint, os.Getenv("SGE_AUDIT_API_KEY"))
	}

	var aiModel scanner.AIModelProvider
	if apiKey := os.Getenv("SGE_GENAI_API_KEY"); apiKey != "" {
		provider, err := aiprovider.New(context.Background(), apiKey, os.Getenv("SGE_GENAI_MODEL"))
		if err != nil {
			log.Warn("AI model provider unavailable, ai-code-review will skip", zap.Error(err))
		} else {
			aiModel = provider
		}
	}

	descriptors := []guardrail.Descriptor{
		scanner.NewSecretScanner(),
		scanner.NewDependencyAuditScanner(audit, 20*time.Second),
		scanner.NewBreakingChangesScanner(),
		scanner.NewPerformanceScanner(),
		scanner.NewComplianceScanner(),
		scanner.NewAICodeReviewScanner(aiModel, 45*time.Second),
	}

	for _, d := range descriptors {
		var override *guardrail.ScannerOverride
		if o, ok := cfg.Guardrails[d.ID()]; ok {
			override = &guardrail.ScannerOverride{
				Enabled:  o.Enabled,
				Severity: finding.Severity(o.Severity),
				Options:  o.Options,
			}
		}
		if err := registry.Register(d, override); err != nil {
			return nil, fmt.Errorf("register %s: %w", d.ID(), err)
		}
	}

	return registry, nil
}

func buildCheckpointManager(repo string, log *zap.Logger) *checkpoint.Manager {
	return checkpoint.NewManager(gitprovider.New(), repo, log)
}

func buildSandbox(cfg config.Config, log *zap.Logger) *sandbox.Sandbox {
	sandboxCfg := sandbox.Config{
		Enabled:          cfg.Sandbox.Enabled,
		Image:            cfg.Sandbox.Image,
		CPUFraction:      cfg.Sandbox.CPUFraction,
		MemoryBytes:      cfg.Sandbox.MemoryBytes,
		Timeout:          time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second,
		NetworkIsolation: cfg.Sandbox.NetworkIsolation,
		MountWorkspace:   cfg.Sandbox.MountWorkspace,
	}
	return sandbox.New(containerrt.New(), sandboxCfg, log)
}

func resolveRepoPath() string {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return repoPath
	}
	return abs
}
