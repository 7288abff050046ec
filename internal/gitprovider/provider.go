// Package gitprovider is the concrete Working-Tree Provider (spec §6):
// it shells out to the git binary using structured argument arrays,
// never concatenated strings, and validates every caller-supplied ref,
// branch name, or label before it reaches git (spec §9).
//
// This package is grounded on the project's existing git-worktree
// helper: exec.CommandContext with a bounded timeout, cmd.Dir set to
// the repository root, and CombinedOutput used for diagnostics on
// failure.
package gitprovider

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single git invocation when the caller's
// context carries no deadline of its own.
const DefaultTimeout = 15 * time.Second

// Provider is the git-backed WorkingTreeProvider implementation.
type Provider struct {
	// Timeout bounds each git invocation that isn't already bounded by
	// ctx. Defaults to DefaultTimeout if zero.
	Timeout time.Duration
}

// New constructs a Provider with the default timeout.
func New() *Provider { return &Provider{Timeout: DefaultTimeout} }

func (p *Provider) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

// run executes git with args inside repoPath, returning combined
// stdout+stderr trimmed of trailing whitespace.
func (p *Provider) run(ctx context.Context, repoPath string, args ...string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = repoPath
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("git %s timed out after %s", args[0], p.timeout())
		}
		return "", fmt.Errorf("git %s failed: %w (output: %s)", args[0], err, trimmed)
	}
	return trimmed, nil
}

// CurrentBranch returns the repository's current branch name.
func (p *Provider) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	return p.run(ctx, repoPath, "rev-parse", "--abbrev-ref", "HEAD")
}

// CurrentCommit returns the repository's current commit reference.
func (p *Provider) CurrentCommit(ctx context.Context, repoPath string) (string, error) {
	return p.run(ctx, repoPath, "rev-parse", "HEAD")
}

// ResolveRef resolves a relative or symbolic ref to a concrete commit SHA.
func (p *Provider) ResolveRef(ctx context.Context, repoPath, ref string) (string, error) {
	if err := validateArg("ref", ref); err != nil {
		return "", err
	}
	return p.run(ctx, repoPath, "rev-parse", ref)
}

// CreateBranch creates a new branch named name at ref.
func (p *Provider) CreateBranch(ctx context.Context, repoPath, name, ref string) error {
	if err := validateArg("name", name); err != nil {
		return err
	}
	if err := validateArg("ref", ref); err != nil {
		return err
	}
	_, err := p.run(ctx, repoPath, "branch", "-f", name, ref)
	return err
}

// HardReset performs a hard reset of the working tree to ref.
func (p *Provider) HardReset(ctx context.Context, repoPath, ref string) error {
	if err := validateArg("ref", ref); err != nil {
		return err
	}
	_, err := p.run(ctx, repoPath, "reset", "--hard", ref)
	return err
}

// ChangedFiles lists files that differ between two commit references.
func (p *Provider) ChangedFiles(ctx context.Context, repoPath, fromRef, toRef string) ([]string, error) {
	if err := validateArg("fromRef", fromRef); err != nil {
		return nil, err
	}
	if err := validateArg("toRef", toRef); err != nil {
		return nil, err
	}
	out, err := p.run(ctx, repoPath, "diff", "--name-only", fromRef, toRef)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Stash stashes current modifications under label. A clean tree (git
// reports "No local changes to save") is not an error (spec §9).
func (p *Provider) Stash(ctx context.Context, repoPath, label string) (bool, error) {
	if err := validateArg("label", label); err != nil {
		return false, err
	}
	out, err := p.run(ctx, repoPath, "stash", "push", "-u", "-m", label)
	if err != nil {
		if strings.Contains(err.Error(), "No local changes to save") {
			return false, nil
		}
		return false, err
	}
	return !strings.Contains(out, "No local changes to save"), nil
}

// PruneWorktrees removes stale worktrees left behind by prior runs.
func (p *Provider) PruneWorktrees(ctx context.Context, repoPath string) error {
	_, err := p.run(ctx, repoPath, "worktree", "prune")
	return err
}
