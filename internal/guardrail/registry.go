package guardrail

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentops/sge/internal/finding"
)

// DefaultScannerDeadline is the hard deadline applied to a scanner when
// neither a per-scanner override nor sandbox.timeout supplies one
// (spec §5 "Cancellation").
const DefaultScannerDeadline = 30 * time.Second

// ScannerOverride is the per-scanner slice of Config.guardrails (spec
// §3): enable/disable, severity escalation/demotion, and opaque
// scanner-specific options.
type ScannerOverride struct {
	Enabled  *bool
	Severity finding.Severity
	Options  map[string]any
	Deadline time.Duration
}

// Registry registers Scanner Descriptors and runs phased pipelines over
// them (C3). The scanner set is read-only during Run; mutating
// operations take an exclusive lock that waits for any in-flight Run to
// finish, matching spec §5's shared-resource policy.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	order    []string
	deadline time.Duration
	log      *zap.Logger
}

// NewRegistry creates an empty Registry. logger may be nil, in which
// case a no-op logger is used.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries:  make(map[string]*entry),
		deadline: DefaultScannerDeadline,
		log:      logger,
	}
}

// SetDefaultDeadline overrides the deadline applied to scanners that
// have no per-scanner override (typically sandbox.timeout, spec §5).
func (r *Registry) SetDefaultDeadline(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d > 0 {
		r.deadline = d
	}
}

// Register inserts a Descriptor, applying any configured override to
// its enabled/severity fields (spec §4.3). Duplicate IDs are rejected.
func (r *Registry) Register(d Descriptor, override *ScannerOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := d.ID()
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	e := &entry{
		descriptor: d,
		enabled:    true,
		severity:   d.DefaultSeverity(),
		order:      len(r.order),
		deadline:   r.deadline,
	}
	if override != nil {
		if err := applyOverride(e, *override); err != nil {
			return err
		}
	}

	r.entries[id] = e
	r.order = append(r.order, id)
	r.log.Debug("scanner registered", zap.String("id", id), zap.Bool("enabled", e.enabled), zap.String("severity", string(e.severity)))
	return nil
}

// Unregister removes a scanner by ID and reports whether one was removed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// UpdateConfig merges a partial override into a live Descriptor's
// registered state. Takes the exclusive lock, so it waits for any Run
// in progress to finish (spec §5).
func (r *Registry) UpdateConfig(id string, override ScannerOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownScanner, id)
	}
	return applyOverride(e, override)
}

func applyOverride(e *entry, override ScannerOverride) error {
	if override.Enabled != nil {
		e.enabled = *override.Enabled
	}
	if override.Severity != "" {
		if !override.Severity.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidSeverity, override.Severity)
		}
		e.severity = override.Severity
	}
	if override.Deadline > 0 {
		e.deadline = override.Deadline
	}
	if override.Options != nil {
		e.lastOptions = override.Options
	}
	return nil
}

// List returns the enabled scanners for a phase, sorted by effective
// severity (Block first) then by registration order as a stable
// tie-break (spec §4.3, testable property 10).
func (r *Registry) List(phase finding.Phase) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		e   *entry
		pos int
	}
	var candidates []scored
	for pos, id := range r.order {
		e := r.entries[id]
		if !e.enabled || e.descriptor.Phase() != phase {
			continue
		}
		candidates = append(candidates, scored{e: e, pos: pos})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].e.severity.Rank(), candidates[j].e.severity.Rank()
		if si != sj {
			return si > sj
		}
		return candidates[i].pos < candidates[j].pos
	})

	out := make([]Descriptor, len(candidates))
	for i, c := range candidates {
		out[i] = c.e.descriptor
	}
	return out
}

// Run invokes every enabled scanner for phase against ctx, sequentially
// and in the deterministic order from List, and aggregates the results
// into a PipelineResult (spec §4.3). Internal scanner panics are
// recovered and converted into a Failed finding at the scanner's
// configured severity (ScannerInternalError, spec §7) rather than
// crashing the pipeline.
func (r *Registry) Run(ctx context.Context, phase finding.Phase, guardCtx Context) finding.PipelineResult {
	ordered := r.List(phase)
	findings := make([]finding.Finding, 0, len(ordered))

	for _, d := range ordered {
		select {
		case <-ctx.Done():
			findings = append(findings, finding.Failed(d.ID(), r.severityOf(d.ID()), "cancelled before scanner ran", nil, nil))
			continue
		default:
		}
		findings = append(findings, r.runOne(ctx, d, guardCtx))
	}

	result := finding.NewPipelineResult(phase, findings)
	r.log.Info("pipeline run complete",
		zap.String("phase", string(phase)),
		zap.Bool("should_block", result.ShouldBlock),
		zap.Int("findings", len(findings)),
	)
	return result
}

func (r *Registry) severityOf(id string) finding.Severity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.severity
	}
	return finding.SeverityWarn
}

// runOne executes a single scanner with its configured deadline,
// recovering panics and converting deadline overruns into a
// timeout Finding (spec §5 "Cancellation").
func (r *Registry) runOne(parent context.Context, d Descriptor, guardCtx Context) (f finding.Finding) {
	r.mu.RLock()
	e := r.entries[d.ID()]
	deadline := e.deadline
	severity := e.severity
	r.mu.RUnlock()

	start := time.Now()
	defer func() {
		f.ExecutionTime = time.Since(start)
		if rec := recover(); rec != nil {
			r.log.Error("scanner panicked", zap.String("id", d.ID()), zap.Any("recover", rec))
			f = finding.Failed(d.ID(), severity, fmt.Sprintf("scanner internal error: %v", rec), nil, nil)
			f.ExecutionTime = time.Since(start)
		}
	}()

	runCtx, cancel := context.WithTimeout(parent, deadline)
	defer cancel()

	resultCh := make(chan finding.Finding, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- finding.Failed(d.ID(), severity, fmt.Sprintf("scanner internal error: %v", rec), nil, nil)
				return
			}
		}()
		resultCh <- d.Execute(guardCtx, severity)
	}()

	select {
	case res := <-resultCh:
		return res
	case <-runCtx.Done():
		return finding.Failed(d.ID(), severity, "scanner exceeded its deadline", []string{fmt.Sprintf("timeout after %s", deadline)}, nil)
	}
}
