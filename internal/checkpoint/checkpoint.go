// Package checkpoint implements the Checkpoint/Rollback Manager (C4): it
// captures working-tree snapshots, restores them atomically, and
// persists the checkpoint index as a single JSON array on disk.
package checkpoint

import "time"

// Checkpoint is a snapshot reference to a working-tree commit plus
// associated metadata (spec §3). Once constructed, a Checkpoint record
// never mutates.
type Checkpoint struct {
	ID         string            `json:"id"`
	Repository string            `json:"repository"`
	BranchName string            `json:"branch_name"`
	CommitRef  string            `json:"commit_ref"`
	CreatedAt  time.Time         `json:"created_at"`
	Description string           `json:"description"`
	Files      []string          `json:"files"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
}

// RollbackResult is the outcome of a Rollback call (spec §4.4).
type RollbackResult struct {
	Success       bool     `json:"success"`
	Checkpoint    *Checkpoint `json:"checkpoint,omitempty"`
	RestoredFiles []string `json:"restored_files,omitempty"`
	Error         string   `json:"error,omitempty"`
}
