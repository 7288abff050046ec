package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// IndexRelPath is where the checkpoint index lives relative to a
// repository root (spec §6 "Persisted state layout").
const IndexRelPath = ".sge/checkpoints.json"

// loadIndex reads the checkpoint index at path. A missing file is
// equivalent to an empty index (spec §4.4 "Persistence").
func loadIndex(path string) ([]Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var checkpoints []Checkpoint
	if err := json.Unmarshal(data, &checkpoints); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	return checkpoints, nil
}

// flushIndex writes checkpoints to path atomically: serialize to a temp
// file in the same directory, fsync, then rename over the destination
// (adapted from the project's general atomic-write-then-rename pattern
// used throughout for JSON/JSONL persistence).
func flushIndex(path string, checkpoints []Checkpoint) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	if checkpoints == nil {
		checkpoints = []Checkpoint{}
	}
	data, err := json.MarshalIndent(checkpoints, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoints-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp index file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename index into place: %w", err)
	}

	success = true
	return nil
}
