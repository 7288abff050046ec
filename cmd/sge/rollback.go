package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentops/sge/internal/checkpoint"
)

var (
	rollbackCommits int
	rollbackAuto    bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [checkpoint-id]",
	Short: "Restore the working tree to a prior checkpoint or commit",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRollback,
}

func init() {
	rollbackCmd.Flags().IntVar(&rollbackCommits, "commits", 0, "Roll back this many commits instead of a checkpoint id")
	rollbackCmd.Flags().BoolVar(&rollbackAuto, "auto", false, "Roll back to the most recently created checkpoint")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync() //nolint:errcheck

	repo := resolveRepoPath()
	manager := buildCheckpointManager(repo, log)

	var (
		result checkpoint.RollbackResult
		err    error
	)

	switch {
	case rollbackAuto:
		result, err = manager.AutoRollback(cmd.Context(), "manual CLI invocation")
	case rollbackCommits > 0:
		result, err = manager.RollbackCommits(cmd.Context(), rollbackCommits)
	case len(args) == 1:
		result, err = manager.Rollback(cmd.Context(), args[0])
	default:
		return fmt.Errorf("specify a checkpoint id, --commits N, or --auto")
	}

	if err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	printJSONOrTable(result, func() {
		fmt.Printf("%+v\n", result)
	})
	return nil
}
