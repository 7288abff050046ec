// Package guardrail implements the Guardrail Registry (C3): it holds the
// Context and Change Set types scanners operate on, registers Scanner
// Descriptors, and runs phased pipelines over them, aggregating their
// Findings into a Pipeline Result.
package guardrail

// Change is a single proposed file edit produced by the external task
// executor (spec §3). The original content, if any, is available from
// the enclosing Context's ReadOnlyFileContents.
type Change struct {
	Path        string `json:"path"`
	NewContent  string `json:"new_content"`
	Explanation string `json:"explanation,omitempty"`
}

// ChangeSet is an ordered, immutable collection of Changes. Treat a
// ChangeSet as read-only once the executor has returned it; nothing in
// this module ever mutates one in place.
type ChangeSet struct {
	Changes []Change `json:"changes"`
}

// Paths returns the set of file paths touched by this change set, in
// Change Set order.
func (cs ChangeSet) Paths() []string {
	paths := make([]string, len(cs.Changes))
	for i, c := range cs.Changes {
		paths[i] = c.Path
	}
	return paths
}

// Touches reports whether any Change's path matches one of the given
// suffixes (e.g. dependency manifest names for the Dependency Audit scanner).
func (cs ChangeSet) Touches(suffixes ...string) bool {
	for _, c := range cs.Changes {
		for _, suf := range suffixes {
			if hasSuffix(c.Path, suf) {
				return true
			}
		}
	}
	return false
}

func hasSuffix(path, suf string) bool {
	if len(path) < len(suf) {
		return false
	}
	return path[len(path)-len(suf):] == suf
}

// Context is what a scanner sees (spec §3). PreExecution scanners only
// see the task/repo/read-only file view; PostExecution scanners
// additionally see Result, which is nil until the executor has run.
type Context struct {
	Task                 string
	Repository           RepositoryHandle
	ReadOnlyFileContents map[string]string
	Result               *ChangeSet
	Metadata             map[string]any
}

// RepositoryHandle identifies a repository the way the Working-Tree
// Provider addresses it (spec §6): a local path plus a logical ID used
// for per-repo config overrides and checkpoint indexing.
type RepositoryHandle struct {
	ID   string
	Path string
}

// WithResult returns a copy of ctx with Result set, used by the
// Coordinator when transitioning from PreExecution to PostExecution
// (spec §4.6 step 6). Metadata is shared, not copied, matching the
// spec's single mutable metadata map per task.
func (ctx Context) WithResult(cs ChangeSet) Context {
	ctx.Result = &cs
	return ctx
}

// OriginalContent returns the pre-change content for path, if known.
func (ctx Context) OriginalContent(path string) (string, bool) {
	c, ok := ctx.ReadOnlyFileContents[path]
	return c, ok
}
