// Package containerrt is the concrete Container-Runtime Provider (spec
// §6): it runs a command inside an image via the docker CLI, using
// structured argument arrays, and enforces cpu/memory/timeout/network
// constraints through docker's own flags.
package containerrt

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// RunSpec describes one container invocation (spec §4.5 step 2).
type RunSpec struct {
	Image            string
	Command          []string
	WorkspaceMount   string // host path mounted read-only
	WorkspacePath    string // fixed in-container mount point
	CPUFraction      float64
	MemoryBytes      int64
	Timeout          time.Duration
	NetworkIsolation bool
}

// RunResult is the raw outcome of a container invocation.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Provider runs commands through the docker CLI.
type Provider struct {
	// Binary is the container runtime executable name, overridable in
	// tests. Defaults to "docker".
	Binary string
}

// New constructs a Provider using the docker CLI.
func New() *Provider { return &Provider{Binary: "docker"} }

func (p *Provider) binary() string {
	if p.Binary != "" {
		return p.Binary
	}
	return "docker"
}

// Ping reports whether the container runtime is reachable, with a short
// timeout so callers can fall back to local execution quickly (spec
// §4.5 step 1).
func (p *Provider) Ping(ctx context.Context, timeout time.Duration) bool {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(pingCtx, p.binary(), "info")
	return cmd.Run() == nil
}

// Run executes spec inside a container, force-terminating on timeout
// (spec §4.5 step 3) and always tearing down the container on exit
// (spec §4.5 step 4, testable property 8).
func (p *Provider) Run(ctx context.Context, spec RunSpec) (RunResult, error) {
	args := []string{
		"run", "--rm",
		"--cpus", fmt.Sprintf("%.2f", spec.CPUFraction),
		"--memory", fmt.Sprintf("%d", spec.MemoryBytes),
	}
	if spec.NetworkIsolation {
		args = append(args, "--network", "none")
	}
	if spec.WorkspaceMount != "" {
		args = append(args, "-v", fmt.Sprintf("%s:%s:ro", spec.WorkspaceMount, spec.WorkspacePath))
	}
	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.binary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("container run: %w", err)
	}
	return result, nil
}
