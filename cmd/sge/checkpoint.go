package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage working-tree checkpoints",
}

var checkpointDescription string

var checkpointCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a checkpoint of the current working tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync() //nolint:errcheck

		repo := resolveRepoPath()
		manager := buildCheckpointManager(repo, log)
		cp, err := manager.CreateCheckpoint(cmd.Context(), checkpointDescription, nil, nil)
		if err != nil {
			return fmt.Errorf("create checkpoint: %w", err)
		}
		printJSONOrTable(cp, func() {
			fmt.Printf("created checkpoint %s at %s (%s)\n", cp.ID, cp.CommitRef, cp.BranchName)
		})
		return nil
	},
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints for the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync() //nolint:errcheck

		repo := resolveRepoPath()
		manager := buildCheckpointManager(repo, log)
		checkpoints, err := manager.List()
		if err != nil {
			return fmt.Errorf("list checkpoints: %w", err)
		}
		printJSONOrTable(checkpoints, func() {
			for _, cp := range checkpoints {
				fmt.Printf("%s\t%s\t%s\t%s\n", cp.ID, cp.CreatedAt.Format("2006-01-02T15:04:05Z"), cp.CommitRef, cp.Description)
			}
		})
		return nil
	},
}

var checkpointDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a single checkpoint by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync() //nolint:errcheck

		repo := resolveRepoPath()
		manager := buildCheckpointManager(repo, log)
		removed, err := manager.Delete(args[0])
		if err != nil {
			return fmt.Errorf("delete checkpoint: %w", err)
		}
		if !removed {
			return fmt.Errorf("checkpoint not found: %s", args[0])
		}
		fmt.Printf("deleted checkpoint %s\n", args[0])
		return nil
	},
}

var checkpointCleanupCmd = &cobra.Command{
	Use:   "cleanup <days>",
	Short: "Remove checkpoints older than the given number of days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid day count %q: %w", args[0], err)
		}

		log := newLogger()
		defer log.Sync() //nolint:errcheck

		repo := resolveRepoPath()
		manager := buildCheckpointManager(repo, log)
		removed, err := manager.Cleanup(days)
		if err != nil {
			return fmt.Errorf("cleanup checkpoints: %w", err)
		}
		fmt.Printf("removed %d checkpoint(s) older than %d day(s)\n", removed, days)
		return nil
	},
}

func init() {
	checkpointCreateCmd.Flags().StringVar(&checkpointDescription, "description", "manual checkpoint", "Description recorded with the checkpoint")
	checkpointCmd.AddCommand(checkpointCreateCmd, checkpointListCmd, checkpointDeleteCmd, checkpointCleanupCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func printJSONOrTable(v any, table func()) {
	if output == "json" {
		data, _ := json.MarshalIndent(v, "", "  ")
		fmt.Println(string(data))
		return
	}
	table()
}
