package checkpoint

import "errors"

// Sentinel errors for the checkpoint package (spec §7's CheckpointError
// taxonomy). Sentinels let callers match with errors.Is instead of
// string comparison.
var (
	// ErrNotFound is returned when rollback references an unknown checkpoint id.
	ErrNotFound = errors.New("checkpoint: not found")

	// ErrNoCheckpoints is returned when auto_rollback finds no checkpoint
	// for the repository and rollback_commits(repo, 1) also has nothing to
	// reset to (e.g. a repo with a single commit).
	ErrNoCheckpoints = errors.New("checkpoint: no checkpoints available for repository")

	// ErrIndexCorrupt is returned when the on-disk index fails to parse as
	// a JSON array of Checkpoint records.
	ErrIndexCorrupt = errors.New("checkpoint: index file is corrupt")
)
