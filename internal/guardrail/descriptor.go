package guardrail

import (
	"time"

	"github.com/agentops/sge/internal/finding"
)

// Descriptor is what a scanner registers as (spec §3, §4.2). Execute
// must be pure with respect to ctx: no writes to the working tree, no
// state shared across invocations, and it must bound its own execution
// time (spec §4.2 "Scanners MUST ... bound their own execution time").
//
// Execute additionally receives the scanner's current effective
// severity (the Descriptor's default, possibly overridden by config,
// per spec §3's Registry entry). Several scanners (Breaking Changes,
// Compliance) explicitly key their Failed-vs-Warning decision off "the
// scanner's configured severity" (spec §4.2.3, §4.2.5); threading it
// through the call keeps that decision inside the scanner, where the
// rest of its classification logic already lives, rather than having
// the registry reach back into a Finding to rewrite it after the fact.
type Descriptor interface {
	ID() string
	Name() string
	Description() string
	Phase() finding.Phase
	DefaultSeverity() finding.Severity
	Execute(ctx Context, effectiveSeverity finding.Severity) finding.Finding
}

// entry is a registered Descriptor plus the mutable fields the registry
// tracks for it (spec §3's "Registry entry is a Descriptor plus a
// mutable enabled: bool and an effective severity").
type entry struct {
	descriptor  Descriptor
	enabled     bool
	severity    finding.Severity
	order       int
	deadline    time.Duration
	lastOptions map[string]any
}
