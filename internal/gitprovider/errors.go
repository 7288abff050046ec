package gitprovider

import "errors"

// Sentinel errors for the gitprovider package.
var (
	// ErrInvalidArgument is returned when a caller-supplied ref, branch
	// name or label contains shell metacharacters or path-traversal
	// sequences (spec §6 "refuse shell-metacharacter injection").
	ErrInvalidArgument = errors.New("gitprovider: invalid argument")

	// ErrNotGitRepo is returned when repoPath is not inside a git
	// repository.
	ErrNotGitRepo = errors.New("gitprovider: not a git repository")
)
