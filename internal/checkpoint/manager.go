package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager is the Checkpoint/Rollback Manager (C4): an in-memory map of
// Checkpoint records backed by a JSON index flushed atomically to disk,
// plus rollback operations driven through a WorkingTreeProvider.
//
// A Manager is scoped to one repository; the index lives at
// <repoPath>/.sge/checkpoints.json (spec §6).
type Manager struct {
	mu        sync.Mutex
	provider  WorkingTreeProvider
	repoPath  string
	indexPath string
	byID      map[string]Checkpoint
	order     []string // ids in insertion order, oldest first
	loaded    bool
	log       *zap.Logger
}

// NewManager constructs a Manager for repoPath. logger may be nil.
func NewManager(provider WorkingTreeProvider, repoPath string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		provider:  provider,
		repoPath:  repoPath,
		indexPath: filepath.Join(repoPath, IndexRelPath),
		byID:      make(map[string]Checkpoint),
		log:       logger,
	}
}

// ensureLoaded hydrates the in-memory index from disk exactly once.
// Caller must hold m.mu.
func (m *Manager) ensureLoaded() error {
	if m.loaded {
		return nil
	}
	checkpoints, err := loadIndex(m.indexPath)
	if err != nil {
		return err
	}
	for _, c := range checkpoints {
		m.byID[c.ID] = c
		m.order = append(m.order, c.ID)
	}
	m.loaded = true
	return nil
}

// flushLocked serializes the current index to disk. Caller must hold m.mu.
func (m *Manager) flushLocked() error {
	ordered := make([]Checkpoint, 0, len(m.order))
	for _, id := range m.order {
		ordered = append(ordered, m.byID[id])
	}
	return flushIndex(m.indexPath, ordered)
}

// CreateCheckpoint snapshots the current working-tree commit and branch,
// persists the record, and returns it (spec §4.4 "Create").
func (m *Manager) CreateCheckpoint(ctx context.Context, description string, files []string, metadata map[string]any) (Checkpoint, error) {
	commit, err := m.provider.CurrentCommit(ctx, m.repoPath)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("resolve current commit: %w", err)
	}
	branch, err := m.provider.CurrentBranch(ctx, m.repoPath)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("resolve current branch: %w", err)
	}

	cp := Checkpoint{
		ID:          uuid.NewString(),
		Repository:  m.repoPath,
		BranchName:  branch,
		CommitRef:   commit,
		CreatedAt:   time.Now().UTC(),
		Description: description,
		Files:       files,
		Metadata:    metadata,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(); err != nil {
		return Checkpoint{}, err
	}
	m.byID[cp.ID] = cp
	m.order = append(m.order, cp.ID)
	if err := m.flushLocked(); err != nil {
		// Create is atomic: on flush failure, undo the in-memory insert so
		// the index and the in-memory view never diverge (spec §4.4
		// "create is atomic (all-or-nothing flush)").
		delete(m.byID, cp.ID)
		m.order = m.order[:len(m.order)-1]
		return Checkpoint{}, fmt.Errorf("flush checkpoint index: %w", err)
	}

	m.log.Info("checkpoint created", zap.String("id", cp.ID), zap.String("commit_ref", cp.CommitRef))
	return cp, nil
}

// Rollback restores the working tree to the commit referenced by the
// checkpoint with the given id (spec §4.4 "Rollback").
func (m *Manager) Rollback(ctx context.Context, id string) (RollbackResult, error) {
	m.mu.Lock()
	if err := m.ensureLoaded(); err != nil {
		m.mu.Unlock()
		return RollbackResult{}, err
	}
	cp, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return RollbackResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return m.rollbackTo(ctx, cp), nil
}

// rollbackTo performs the stash-then-reset sequence against cp, never
// leaving the tree partially modified (spec §4.4 step 4, testable
// property 6).
func (m *Manager) rollbackTo(ctx context.Context, cp Checkpoint) RollbackResult {
	if _, err := m.provider.Stash(ctx, m.repoPath, "sge-rollback-"+cp.ID); err != nil {
		m.log.Warn("rollback stash failed", zap.String("id", cp.ID), zap.Error(err))
		return RollbackResult{Success: false, Checkpoint: &cp, Error: fmt.Sprintf("stash failed: %v", err)}
	}

	if err := m.provider.HardReset(ctx, m.repoPath, cp.CommitRef); err != nil {
		m.log.Warn("rollback reset failed", zap.String("id", cp.ID), zap.Error(err))
		return RollbackResult{Success: false, Checkpoint: &cp, Error: fmt.Sprintf("hard reset failed: %v", err)}
	}

	m.log.Info("rollback complete", zap.String("id", cp.ID), zap.String("commit_ref", cp.CommitRef))
	return RollbackResult{Success: true, Checkpoint: &cp, RestoredFiles: cp.Files}
}

// RollbackCommits resets the working tree to the commit n steps behind
// HEAD, by constructing a synthetic (unindexed) Checkpoint referring to
// that commit (spec §4.4 "Rollback last N commits").
func (m *Manager) RollbackCommits(ctx context.Context, n int) (RollbackResult, error) {
	ref, err := m.provider.ResolveRef(ctx, m.repoPath, fmt.Sprintf("HEAD~%d", n))
	if err != nil {
		return RollbackResult{}, fmt.Errorf("resolve HEAD~%d: %w", n, err)
	}
	branch, err := m.provider.CurrentBranch(ctx, m.repoPath)
	if err != nil {
		branch = ""
	}

	synthetic := Checkpoint{
		ID:          "synthetic-" + uuid.NewString(),
		Repository:  m.repoPath,
		BranchName:  branch,
		CommitRef:   ref,
		CreatedAt:   time.Now().UTC(),
		Description: fmt.Sprintf("rollback_commits(n=%d)", n),
	}
	return m.rollbackTo(ctx, synthetic), nil
}

// AutoRollback selects the most recently created checkpoint for the
// repository and rolls back to it; if none exists, it falls back to
// rolling back one commit (spec §4.4 "Auto-rollback").
func (m *Manager) AutoRollback(ctx context.Context, reason string) (RollbackResult, error) {
	m.mu.Lock()
	if err := m.ensureLoaded(); err != nil {
		m.mu.Unlock()
		return RollbackResult{}, err
	}
	var latest *Checkpoint
	for _, id := range m.order {
		cp := m.byID[id]
		if latest == nil || cp.CreatedAt.After(latest.CreatedAt) {
			c := cp
			latest = &c
		}
	}
	m.mu.Unlock()

	if latest == nil {
		m.log.Info("auto rollback: no checkpoints, falling back to rollback_commits(1)", zap.String("reason", reason))
		return m.RollbackCommits(ctx, 1)
	}

	m.log.Info("auto rollback", zap.String("checkpoint_id", latest.ID), zap.String("reason", reason))
	return m.rollbackTo(ctx, *latest), nil
}

var safetyBranchSanitizer = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CreateSafetyBranch creates a new branch at the current HEAD with a
// sanitized, timestamped name: no whitespace, no shell metacharacters,
// no path separators (spec §4.4 "Safety branch").
func (m *Manager) CreateSafetyBranch(ctx context.Context, baseLabel string) (string, error) {
	commit, err := m.provider.CurrentCommit(ctx, m.repoPath)
	if err != nil {
		return "", fmt.Errorf("resolve current commit: %w", err)
	}

	sanitized := safetyBranchSanitizer.ReplaceAllString(baseLabel, "-")
	if sanitized == "" {
		sanitized = "safety"
	}
	name := fmt.Sprintf("sge/%s-%d", sanitized, time.Now().UTC().Unix())

	if err := m.provider.CreateBranch(ctx, m.repoPath, name, commit); err != nil {
		return "", fmt.Errorf("create safety branch: %w", err)
	}
	return name, nil
}

// Cleanup removes checkpoints older than days and re-flushes the index,
// returning the count removed (spec §4.4 "Retention", testable property 7).
func (m *Manager) Cleanup(days int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureLoaded(); err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var kept []string
	removed := 0
	for _, id := range m.order {
		cp := m.byID[id]
		if cp.CreatedAt.Before(cutoff) {
			delete(m.byID, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept

	if err := m.flushLocked(); err != nil {
		return removed, fmt.Errorf("flush checkpoint index: %w", err)
	}
	m.log.Info("checkpoint cleanup", zap.Int("removed", removed), zap.Int("remaining", len(kept)))
	return removed, nil
}

// List returns every checkpoint currently in the index, oldest first.
func (m *Manager) List() ([]Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]Checkpoint, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Delete removes a single checkpoint by id and re-flushes the index,
// reporting whether one was removed.
func (m *Manager) Delete(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoaded(); err != nil {
		return false, err
	}
	if _, ok := m.byID[id]; !ok {
		return false, nil
	}
	delete(m.byID, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if err := m.flushLocked(); err != nil {
		return true, fmt.Errorf("flush checkpoint index: %w", err)
	}
	return true, nil
}
