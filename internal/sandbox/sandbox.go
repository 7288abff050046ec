// Package sandbox implements the Isolated Executor (C5): it runs
// arbitrary code or test commands under resource caps, preferring a
// container runtime and falling back to local execution when the
// runtime is unavailable, with guaranteed cleanup on every exit path.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/agentops/sge/internal/containerrt"
)

// maxCapturedOutput bounds stdout/stderr capture per stream (spec §4.5:
// "Output capture caps at an implementation-defined maximum per stream
// (>= 10 MiB)").
const maxCapturedOutput = 16 * 1024 * 1024

// Language identifies a recognized runtime (spec §4.5): a
// general-purpose scripting runtime, a typed-scripting runtime, a
// dynamic scripting runtime, and a shell interpreter.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageTypeScript Language = "typescript"
	LanguageJavaScript Language = "javascript"
	LanguageShell      Language = "shell"
)

type languageSpec struct {
	extension string
	command   func(scriptPath string) []string
}

var languageTable = map[Language]languageSpec{
	LanguagePython: {
		extension: ".py",
		command:   func(p string) []string { return []string{"python3", p} },
	},
	LanguageTypeScript: {
		extension: ".ts",
		command:   func(p string) []string { return []string{"ts-node", p} },
	},
	LanguageJavaScript: {
		extension: ".js",
		command:   func(p string) []string { return []string{"node", p} },
	},
	LanguageShell: {
		extension: ".sh",
		command:   func(p string) []string { return []string{"sh", p} },
	},
}

// ExecResult is the outcome of one sandbox invocation (spec §4.5).
type ExecResult struct {
	Success       bool          `json:"success"`
	Stdout        string        `json:"stdout"`
	Stderr        string        `json:"stderr"`
	ExitCode      int           `json:"exit_code"`
	ExecutionTime time.Duration `json:"execution_time"`
	Error         string        `json:"error,omitempty"`
}

// ContainerRuntime is the external Container-Runtime Provider (spec
// §6), referenced here only through its data shapes so this package
// never depends on docker-specific behavior.
type ContainerRuntime interface {
	Ping(ctx context.Context, timeout time.Duration) bool
	Run(ctx context.Context, spec containerrt.RunSpec) (containerrt.RunResult, error)
}

// Config is the sandbox.* slice of Config from spec §3.
type Config struct {
	Enabled          bool
	Image            string
	CPUFraction      float64
	MemoryBytes      int64
	Timeout          time.Duration
	NetworkIsolation bool
	MountWorkspace   bool
}

// DefaultConfig matches spec §6's documented defaults: "sandbox
// disabled; cpu_fraction=0.5, memory=512 MiB, timeout=60s".
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Image:       "sge-sandbox:latest",
		CPUFraction: 0.5,
		MemoryBytes: 512 * 1024 * 1024,
		Timeout:     60 * time.Second,
	}
}

const containerWorkspacePath = "/workspace"
const pingTimeout = 2 * time.Second

// Sandbox is the Isolated Executor.
type Sandbox struct {
	runtime ContainerRuntime
	cfg     Config
	log     *zap.Logger
}

// New constructs a Sandbox. runtime may be nil, in which case every
// invocation runs locally.
func New(runtime ContainerRuntime, cfg Config, logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sandbox{runtime: runtime, cfg: cfg, log: logger}
}

// Execute runs code under language in an isolated environment (spec
// §4.5 "execute").
func (s *Sandbox) Execute(ctx context.Context, code string, language Language) ExecResult {
	spec, ok := languageTable[language]
	if !ok {
		return ExecResult{Success: false, ExitCode: -1, Error: fmt.Sprintf("%v: %s", ErrUnknownLanguage, language)}
	}

	workDir, err := os.MkdirTemp("", "sge-sandbox-*")
	if err != nil {
		return ExecResult{Success: false, ExitCode: -1, Error: fmt.Sprintf("create temp directory: %v", err)}
	}
	defer os.RemoveAll(workDir)

	scriptPath := filepath.Join(workDir, "main"+spec.extension)
	if err := os.WriteFile(scriptPath, []byte(code), 0o600); err != nil {
		return ExecResult{Success: false, ExitCode: -1, Error: fmt.Sprintf("materialize script: %v", err)}
	}

	return s.run(ctx, workDir, spec.command(containerScriptPath(spec.extension)), spec.command(scriptPath))
}

// ExecuteTests mounts repo read-only and runs command via the shell
// interpreter (spec §4.5 "execute_tests").
func (s *Sandbox) ExecuteTests(ctx context.Context, repoPath, command string) ExecResult {
	shellSpec := languageTable[LanguageShell]
	containerCmd := shellSpec.command(containerScriptPath(""))
	containerCmd[len(containerCmd)-1] = "-c"
	containerCmd = append(containerCmd, command)

	localCmd := []string{"sh", "-c", command}

	return s.run(ctx, repoPath, containerCmd, localCmd)
}

func containerScriptPath(extension string) string {
	return filepath.Join(containerWorkspacePath, "main"+extension)
}

// run attempts container execution if the runtime is available,
// otherwise falls back to local execution, always bounding the result's
// captured output and reporting resource cleanup guarantees (spec §4.5
// steps 1-4).
func (s *Sandbox) run(ctx context.Context, mountDir string, containerCmd, localCmd []string) ExecResult {
	start := time.Now()

	if s.cfg.Enabled && s.runtime != nil && s.runtime.Ping(ctx, pingTimeout) {
		result, err := s.runtime.Run(ctx, containerrt.RunSpec{
			Image:            s.cfg.Image,
			Command:          containerCmd,
			WorkspaceMount:   mountDir,
			WorkspacePath:    containerWorkspacePath,
			CPUFraction:      s.cfg.CPUFraction,
			MemoryBytes:      s.cfg.MemoryBytes,
			Timeout:          s.cfg.Timeout,
			NetworkIsolation: s.cfg.NetworkIsolation,
		})
		if err != nil {
			s.log.Warn("container execution failed, falling back to local", zap.Error(err))
		} else {
			return ExecResult{
				Success:       !result.TimedOut && result.ExitCode == 0,
				Stdout:        capOutput(result.Stdout),
				Stderr:        capOutput(result.Stderr),
				ExitCode:      result.ExitCode,
				ExecutionTime: time.Since(start),
			}
		}
	}

	return s.runLocal(ctx, localCmd, start)
}

// runLocal executes localCmd directly, with the configured timeout
// force-terminating the process (spec §4.5 step 3's local-fallback
// analogue).
func (s *Sandbox) runLocal(ctx context.Context, localCmd []string, start time.Time) ExecResult {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, localCmd[0], localCmd[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ExecResult{
		Stdout:        capOutput(stdout.String()),
		Stderr:        capOutput(stderr.String()),
		ExecutionTime: time.Since(start),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		result.Success = false
		result.Error = "execution timed out"
		return result
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		result.Success = false
		return result
	}
	if err != nil {
		result.ExitCode = -1
		result.Success = false
		result.Error = fmt.Sprintf("local execution failed: %v", err)
		return result
	}

	result.ExitCode = 0
	result.Success = true
	return result
}

func capOutput(s string) string {
	if len(s) <= maxCapturedOutput {
		return s
	}
	return s[:maxCapturedOutput]
}
