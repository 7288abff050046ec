// Package coordinator implements the Safety Coordinator (C6): it
// orchestrates the per-task flow described in spec §4.6, integrating
// the Guardrail Registry (C3) and the Checkpoint/Rollback Manager (C4)
// under a single configuration. The Coordinator never writes to the
// working tree itself; all mutation goes through the Rollback Manager.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentops/sge/internal/checkpoint"
	"github.com/agentops/sge/internal/config"
	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

// TaskExecutor is the external task executor (spec §1 "a task executor
// which proposes file changes"): given the pre-execution Context, it
// produces the Change Set SGE evaluates in the post-execution phase.
type TaskExecutor interface {
	Execute(ctx context.Context, guardCtx guardrail.Context) (guardrail.ChangeSet, error)
}

// Result is the Coordinator Result returned to the caller (spec §4.6
// step 8).
type Result struct {
	PreResult    finding.PipelineResult
	PostResult   *finding.PipelineResult
	ChangeSet    *guardrail.ChangeSet
	CheckpointID string
	Rollback     *checkpoint.RollbackResult
	Blocked      bool
}

// Coordinator is the Safety Coordinator (C6).
type Coordinator struct {
	registry    *guardrail.Registry
	checkpoints *checkpoint.Manager
	executor    TaskExecutor
	log         *zap.Logger
}

// New constructs a Coordinator. logger may be nil.
func New(registry *guardrail.Registry, checkpoints *checkpoint.Manager, executor TaskExecutor, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{registry: registry, checkpoints: checkpoints, executor: executor, log: logger}
}

// RunTask executes the 8-step per-task flow from spec §4.6.
func (c *Coordinator) RunTask(ctx context.Context, cfg config.Config, repo guardrail.RepositoryHandle, task string, readOnlyFiles map[string]string) (Result, error) {
	effective := config.EffectiveForRepo(cfg, repo.ID)

	guardCtx := guardrail.Context{
		Task:                 task,
		Repository:           repo,
		ReadOnlyFileContents: readOnlyFiles,
		Metadata:             map[string]any{},
	}

	preResult := c.registry.Run(ctx, finding.PhasePreExecution, guardCtx)
	if preResult.ShouldBlock {
		c.log.Info("task blocked at pre-execution", zap.String("task", task))
		return Result{PreResult: preResult, Blocked: true}, nil
	}

	var checkpointID string
	if effective.Rollback.CreateCheckpoints && c.checkpoints != nil {
		cp, err := c.checkpoints.CreateCheckpoint(ctx, "pre-task snapshot: "+task, filePaths(readOnlyFiles), nil)
		if err != nil {
			return Result{PreResult: preResult}, fmt.Errorf("create checkpoint: %w", err)
		}
		checkpointID = cp.ID
		guardCtx.Metadata["checkpoint_id"] = checkpointID
	}

	changeSet, err := c.executor.Execute(ctx, guardCtx)
	if err != nil {
		return Result{PreResult: preResult, CheckpointID: checkpointID}, fmt.Errorf("task executor: %w", err)
	}

	guardCtx = guardCtx.WithResult(changeSet)
	postResult := c.registry.Run(ctx, finding.PhasePostExecution, guardCtx)

	result := Result{
		PreResult:    preResult,
		PostResult:   &postResult,
		ChangeSet:    &changeSet,
		CheckpointID: checkpointID,
	}

	if postResult.ShouldBlock && effective.Rollback.Enabled && effective.Rollback.AutoRollbackOnBlock && c.checkpoints != nil {
		reason := fmt.Sprintf("post-execution block for task %q at %s", task, time.Now().UTC().Format(time.RFC3339))
		rollback, rbErr := c.checkpoints.AutoRollback(ctx, reason)
		if rbErr != nil {
			c.log.Error("auto rollback failed", zap.Error(rbErr))
			rollback = checkpoint.RollbackResult{Success: false, Error: rbErr.Error()}
		}
		result.Rollback = &rollback
	}

	return result, nil
}

func filePaths(readOnlyFiles map[string]string) []string {
	paths := make([]string, 0, len(readOnlyFiles))
	for p := range readOnlyFiles {
		paths = append(paths, p)
	}
	return paths
}
