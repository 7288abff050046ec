package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/agentops/sge/internal/config"
	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

// changeSetFile is the on-disk shape `sge audit` reads: a task
// description, the read-only pre-change file view, and the proposed
// Change Set to evaluate in the post-execution phase.
type changeSetFile struct {
	Task                 string            `json:"task"`
	ReadOnlyFileContents map[string]string `json:"read_only_file_contents"`
	Changes              []guardrail.Change `json:"changes"`
}

var auditCmd = &cobra.Command{
	Use:   "audit <change-set.json>",
	Short: "Run pre- and post-execution guardrails over a change set file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync() //nolint:errcheck

	repo := resolveRepoPath()
	cfg, err := loadEffectiveConfig(repo)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	effective := config.EffectiveForRepo(cfg, repo)

	registry, err := buildRegistry(effective, log)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read change set file: %w", err)
	}
	var input changeSetFile
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("parse change set file: %w", err)
	}

	sp := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	if output != "json" {
		sp.Suffix = " running pre-execution guardrails..."
		sp.Start()
	}

	guardCtx := guardrail.Context{
		Task:                 input.Task,
		Repository:           guardrail.RepositoryHandle{ID: repo, Path: repo},
		ReadOnlyFileContents: input.ReadOnlyFileContents,
		Metadata:             map[string]any{},
	}

	preResult := registry.Run(cmd.Context(), finding.PhasePreExecution, guardCtx)
	if preResult.ShouldBlock {
		sp.Stop()
		printPipelineResult(preResult)
		return exitWith(exitBlocked)
	}

	if output != "json" {
		sp.Suffix = " running post-execution guardrails..."
	}
	guardCtx = guardCtx.WithResult(guardrail.ChangeSet{Changes: input.Changes})
	postResult := registry.Run(cmd.Context(), finding.PhasePostExecution, guardCtx)
	sp.Stop()

	printPipelineResult(preResult)
	printPipelineResult(postResult)

	if postResult.ShouldBlock {
		return exitWith(exitBlocked)
	}
	return nil
}

func printPipelineResult(result finding.PipelineResult) {
	if output == "json" {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("phase=%s should_block=%t\n", result.Phase, result.ShouldBlock)
	for _, f := range result.Findings {
		fmt.Printf("  [%s/%s] %s: %s\n", f.Status, f.Severity, f.ScannerID, f.Message)
		for _, d := range f.DetailLines {
			fmt.Printf("      %s\n", d)
		}
	}
}

// exitWith signals a non-zero exit code without printing an additional
// error (the caller already printed the pipeline result).
type exitCodeError struct{ code int }

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func exitWith(code int) error {
	return &exitCodeError{code: code}
}
