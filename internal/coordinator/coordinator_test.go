package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/agentops/sge/internal/checkpoint"
	"github.com/agentops/sge/internal/config"
	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

type fakeDescriptor struct {
	id      string
	phase   finding.Phase
	execute func(guardrail.Context, finding.Severity) finding.Finding
}

func (f *fakeDescriptor) ID() string                        { return f.id }
func (f *fakeDescriptor) Name() string                      { return f.id }
func (f *fakeDescriptor) Phase() finding.Phase              { return f.phase }
func (f *fakeDescriptor) DefaultSeverity() finding.Severity  { return finding.SeverityWarn }
func (f *fakeDescriptor) Description() string                { return "" }
func (f *fakeDescriptor) Execute(ctx guardrail.Context, severity finding.Severity) finding.Finding {
	return f.execute(ctx, severity)
}

type fakeExecutor struct {
	changeSet guardrail.ChangeSet
	err       error
	called    bool
}

func (f *fakeExecutor) Execute(ctx context.Context, guardCtx guardrail.Context) (guardrail.ChangeSet, error) {
	f.called = true
	return f.changeSet, f.err
}

type fakeWorkingTree struct {
	branch string
	commit string
}

func (f *fakeWorkingTree) CurrentBranch(ctx context.Context, repoPath string) (string, error) {
	return f.branch, nil
}
func (f *fakeWorkingTree) CurrentCommit(ctx context.Context, repoPath string) (string, error) {
	return f.commit, nil
}
func (f *fakeWorkingTree) ResolveRef(ctx context.Context, repoPath, ref string) (string, error) {
	return "resolved-" + ref, nil
}
func (f *fakeWorkingTree) CreateBranch(ctx context.Context, repoPath, name, ref string) error {
	return nil
}
func (f *fakeWorkingTree) HardReset(ctx context.Context, repoPath, ref string) error { return nil }
func (f *fakeWorkingTree) ChangedFiles(ctx context.Context, repoPath, fromRef, toRef string) ([]string, error) {
	return nil, nil
}
func (f *fakeWorkingTree) Stash(ctx context.Context, repoPath, label string) (bool, error) {
	return true, nil
}
func (f *fakeWorkingTree) PruneWorktrees(ctx context.Context, repoPath string) error { return nil }

func passingDescriptor(id string, phase finding.Phase) *fakeDescriptor {
	return &fakeDescriptor{id: id, phase: phase, execute: func(guardrail.Context, finding.Severity) finding.Finding {
		return finding.Passed(id, "ok")
	}}
}

func TestRunTaskBlocksAtPreExecution(t *testing.T) {
	registry := guardrail.NewRegistry(nil)
	blocker := &fakeDescriptor{id: "secret-scan", phase: finding.PhasePreExecution, execute: func(guardrail.Context, finding.Severity) finding.Finding {
		return finding.Failed("secret-scan", finding.SeverityBlock, "secret found", nil, nil)
	}}
	if err := registry.Register(blocker, nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	executor := &fakeExecutor{}
	coord := New(registry, nil, executor, nil)

	result, err := coord.RunTask(context.Background(), config.Default(), guardrail.RepositoryHandle{ID: "repo", Path: "."}, "do the thing", nil)
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}
	if !result.Blocked {
		t.Fatalf("expected the task to be blocked at pre-execution, got %+v", result)
	}
	if executor.called {
		t.Fatal("expected the task executor to never run once pre-execution blocks")
	}
}

func TestRunTaskCreatesCheckpointAndRunsExecutor(t *testing.T) {
	registry := guardrail.NewRegistry(nil)
	if err := registry.Register(passingDescriptor("secret-scan", finding.PhasePreExecution), nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.Register(passingDescriptor("compliance", finding.PhasePostExecution), nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	dir := t.TempDir()
	manager := checkpoint.NewManager(&fakeWorkingTree{branch: "main", commit: "abc"}, dir, nil)
	executor := &fakeExecutor{changeSet: guardrail.ChangeSet{Changes: []guardrail.Change{{Path: "a.go", NewContent: "package a"}}}}
	coord := New(registry, manager, executor, nil)

	result, err := coord.RunTask(context.Background(), config.Default(), guardrail.RepositoryHandle{ID: "repo", Path: dir}, "do the thing", nil)
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}
	if result.Blocked {
		t.Fatalf("expected the task to pass, got %+v", result)
	}
	if result.CheckpointID == "" {
		t.Fatal("expected a checkpoint to be created")
	}
	if !executor.called {
		t.Fatal("expected the task executor to run")
	}
	if result.ChangeSet == nil || len(result.ChangeSet.Changes) != 1 {
		t.Fatalf("expected the change set to be carried through, got %+v", result.ChangeSet)
	}
}

func TestRunTaskSurfacesExecutorError(t *testing.T) {
	registry := guardrail.NewRegistry(nil)
	if err := registry.Register(passingDescriptor("secret-scan", finding.PhasePreExecution), nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	cfg := config.Default()
	cfg.Rollback.CreateCheckpoints = false
	executor := &fakeExecutor{err: errors.New("executor exploded")}
	coord := New(registry, nil, executor, nil)

	_, err := coord.RunTask(context.Background(), cfg, guardrail.RepositoryHandle{ID: "repo", Path: "."}, "do the thing", nil)
	if err == nil {
		t.Fatal("expected the executor error to propagate")
	}
}

func TestRunTaskAutoRollsBackOnPostExecutionBlock(t *testing.T) {
	registry := guardrail.NewRegistry(nil)
	if err := registry.Register(passingDescriptor("secret-scan", finding.PhasePreExecution), nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	blocker := &fakeDescriptor{id: "ai-code-review", phase: finding.PhasePostExecution, execute: func(guardrail.Context, finding.Severity) finding.Finding {
		return finding.Failed("ai-code-review", finding.SeverityBlock, "critical issue", nil, nil)
	}}
	if err := registry.Register(blocker, nil); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	dir := t.TempDir()
	manager := checkpoint.NewManager(&fakeWorkingTree{branch: "main", commit: "abc"}, dir, nil)
	executor := &fakeExecutor{changeSet: guardrail.ChangeSet{Changes: []guardrail.Change{{Path: "a.go", NewContent: "package a"}}}}
	coord := New(registry, manager, executor, nil)

	cfg := config.Default()
	result, err := coord.RunTask(context.Background(), cfg, guardrail.RepositoryHandle{ID: "repo", Path: dir}, "do the thing", nil)
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}
	if result.PostResult == nil || !result.PostResult.ShouldBlock {
		t.Fatalf("expected post-execution to block, got %+v", result.PostResult)
	}
	if result.Rollback == nil || !result.Rollback.Success {
		t.Fatalf("expected an automatic rollback to run and succeed, got %+v", result.Rollback)
	}
}
