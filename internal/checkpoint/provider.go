package checkpoint

import "context"

// WorkingTreeProvider is the external Working-Tree Provider (spec §6):
// SGE treats version control as an abstract capability so the Manager
// never shells out directly. Every implementation MUST pass arguments
// as structured arrays, never concatenated strings (spec §9
// "Shell-argument handling").
type WorkingTreeProvider interface {
	// CurrentBranch returns the repository's current branch name.
	CurrentBranch(ctx context.Context, repoPath string) (string, error)

	// CurrentCommit returns the repository's current commit reference.
	CurrentCommit(ctx context.Context, repoPath string) (string, error)

	// ResolveRef resolves a relative or symbolic ref (e.g. "HEAD~2") to a
	// concrete commit reference.
	ResolveRef(ctx context.Context, repoPath, ref string) (string, error)

	// CreateBranch creates a new branch named name at ref.
	CreateBranch(ctx context.Context, repoPath, name, ref string) error

	// HardReset performs a hard reset of the working tree to ref.
	HardReset(ctx context.Context, repoPath, ref string) error

	// ChangedFiles lists files that differ between two commit references.
	ChangedFiles(ctx context.Context, repoPath, fromRef, toRef string) ([]string, error)

	// Stash stashes current modifications under label. It reports
	// whether anything was actually stashed; a clean tree is not an
	// error (spec §9 "Rollback and stash").
	Stash(ctx context.Context, repoPath, label string) (stashed bool, err error)

	// PruneWorktrees removes stale worktrees left behind by prior runs.
	PruneWorktrees(ctx context.Context, repoPath string) error
}
