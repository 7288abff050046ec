package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	repoPath   string
	verbose    bool
	output     string
	cfgOverlay string
)

// Exit codes (spec §6): 0 = passed, 1 = blocked, 2 = internal error.
const (
	exitPassed  = 0
	exitBlocked = 1
	exitError   = 2
)

var rootCmd = &cobra.Command{
	Use:   "sge",
	Short: "Safety Guardrail Engine CLI",
	Long: `sge runs safety guardrails around agent-proposed code changes:
secret scanning, dependency auditing, breaking-change detection,
performance hotspot review, compliance checks, and AI code review,
backed by checkpoint/rollback and an isolated test executor.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, exiting the process with the
// appropriate code on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if ec, ok := err.(*exitCodeError); ok {
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "r", ".", "Repository path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&cfgOverlay, "config", "", "Path to an additional safety-config.json overlay")
}

func newLogger() *zap.Logger {
	if verbose {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(exitError)
}
