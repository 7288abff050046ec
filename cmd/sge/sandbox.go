package main

import (
	"fmt"
	"os"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"time"

	"github.com/agentops/sge/internal/config"
	"github.com/agentops/sge/internal/sandbox"
)

var (
	sandboxLanguage string
	sandboxTestCmd  string
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run code or tests in the isolated executor",
}

var sandboxExecCmd = &cobra.Command{
	Use:   "exec <script-file>",
	Short: "Execute a script file in the sandbox",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read script file: %w", err)
		}

		log := newLogger()
		defer log.Sync() //nolint:errcheck

		repo := resolveRepoPath()
		cfg, err := loadEffectiveConfig(repo)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		effective := config.EffectiveForRepo(cfg, repo)
		box := buildSandbox(effective, log)

		sp := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
		if output != "json" {
			sp.Suffix = " executing in sandbox..."
			sp.Start()
		}
		result := box.Execute(cmd.Context(), string(code), sandbox.Language(sandboxLanguage))
		sp.Stop()

		printJSONOrTable(result, func() {
			fmt.Printf("success=%t exit_code=%d duration=%s\n", result.Success, result.ExitCode, result.ExecutionTime)
			fmt.Println(result.Stdout)
			if result.Stderr != "" {
				fmt.Fprintln(os.Stderr, result.Stderr)
			}
		})
		if !result.Success {
			return exitWith(exitBlocked)
		}
		return nil
	},
}

var sandboxTestCmdCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the repository's test command in the isolated executor",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sandboxTestCmd == "" {
			return fmt.Errorf("--command is required")
		}

		log := newLogger()
		defer log.Sync() //nolint:errcheck

		repo := resolveRepoPath()
		cfg, err := loadEffectiveConfig(repo)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		effective := config.EffectiveForRepo(cfg, repo)
		box := buildSandbox(effective, log)

		result := box.ExecuteTests(cmd.Context(), repo, sandboxTestCmd)
		printJSONOrTable(result, func() {
			fmt.Printf("success=%t exit_code=%d duration=%s\n", result.Success, result.ExitCode, result.ExecutionTime)
			fmt.Println(result.Stdout)
			if result.Stderr != "" {
				fmt.Fprintln(os.Stderr, result.Stderr)
			}
		})
		if !result.Success {
			return exitWith(exitBlocked)
		}
		return nil
	},
}

func init() {
	sandboxExecCmd.Flags().StringVar(&sandboxLanguage, "language", "python", "Script language (python, typescript, javascript, shell)")
	sandboxTestCmdCmd.Flags().StringVar(&sandboxTestCmd, "command", "", "Test command to run inside the repository")
	sandboxCmd.AddCommand(sandboxExecCmd, sandboxTestCmdCmd)
	rootCmd.AddCommand(sandboxCmd)
}
