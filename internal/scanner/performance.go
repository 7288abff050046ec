package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

var (
	loopStartRe    = regexp.MustCompile(`^\s*(?:for|while)\b`)
	regexLiteralRe = regexp.MustCompile(`\b(?:new RegExp|re\.compile|regexp\.MustCompile|regexp\.Compile)\s*\(`)
	jsonRoundTrip  = regexp.MustCompile(`\b(?:JSON\.parse|JSON\.stringify|json\.Marshal|json\.Unmarshal|json\.loads|json\.dumps)\s*\(`)
	debugLogRe     = regexp.MustCompile(`\b(?:console\.log|print|fmt\.Println|fmt\.Printf|System\.out\.println)\s*\(`)
)

// perfHit is one detected hotspot, already classified to a severity
// (spec §4.2.4: "Any High -> Warning; only Medium/Low -> Warning-lite").
type perfHit struct {
	severity string // "high", "medium", or "low"
	line     string
}

// PerformanceScanner is the Post-phase, Warn-by-default scanner from
// spec §4.2.4. It never fails the pipeline outright: its worst outcome
// is a Warning, scaled by how serious the detected hotspots are.
type PerformanceScanner struct{}

// NewPerformanceScanner constructs the performance scanner.
func NewPerformanceScanner() *PerformanceScanner { return &PerformanceScanner{} }

func (s *PerformanceScanner) ID() string                       { return "performance" }
func (s *PerformanceScanner) Name() string                     { return "Performance" }
func (s *PerformanceScanner) Phase() finding.Phase             { return finding.PhasePostExecution }
func (s *PerformanceScanner) DefaultSeverity() finding.Severity { return finding.SeverityWarn }
func (s *PerformanceScanner) Description() string {
	return "Flags nested loops, per-iteration regex compilation, JSON round-trips and debug logging inside loops."
}

func (s *PerformanceScanner) Execute(ctx guardrail.Context, _ finding.Severity) finding.Finding {
	if ctx.Result == nil {
		return finding.Skipped(s.ID(), "no change set to scan (pre-execution context)")
	}

	var hits []perfHit
	for _, change := range ctx.Result.Changes {
		hits = append(hits, scanPerformanceHotspots(change.Path, change.NewContent)...)
	}

	if len(hits) == 0 {
		return finding.Passed(s.ID(), "no performance hotspots detected")
	}

	var high, mediumOrLow []string
	for _, h := range hits {
		if h.severity == "high" {
			high = append(high, h.line)
		} else {
			mediumOrLow = append(mediumOrLow, h.line)
		}
	}

	if len(high) > 0 {
		return finding.Warning(s.ID(),
			fmt.Sprintf("%d high-impact performance hotspot(s) detected", len(high)),
			append(high, mediumOrLow...),
			[]string{
				"Hoist loop-invariant work (regex compilation, repeated parsing) outside the loop body.",
				"Consider an algorithm with better asymptotic complexity for nested iteration over the same collection.",
			})
	}

	return finding.Warning(s.ID(),
		fmt.Sprintf("%d minor performance note(s)", len(mediumOrLow)),
		mediumOrLow,
		[]string{"Review for hot-path impact; likely safe to defer."})
}

// scanPerformanceHotspots walks content tracking loop nesting via an
// indentation stack: a line is "inside a loop" once its indentation is
// deeper than an unmatched loop-start line above it.
func scanPerformanceHotspots(path, content string) []perfHit {
	var hits []perfHit
	type frame struct {
		indent int
		line   int
	}
	var stack []frame

	for i, line := range strings.Split(content, "\n") {
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		for len(stack) > 0 && indent <= stack[len(stack)-1].indent && !loopStartRe.MatchString(line) {
			stack = stack[:len(stack)-1]
		}

		inLoop := len(stack) > 0
		nestedLoop := inLoop && loopStartRe.MatchString(line)

		switch {
		case nestedLoop:
			hits = append(hits, perfHit{"high", fmt.Sprintf("%s:%d loop nested inside another loop (started at line %d)", path, i+1, stack[len(stack)-1].line)})
		case inLoop && regexLiteralRe.MatchString(line):
			hits = append(hits, perfHit{"high", fmt.Sprintf("%s:%d regular expression compiled on every loop iteration", path, i+1)})
		case inLoop && jsonRoundTrip.MatchString(line):
			hits = append(hits, perfHit{"medium", fmt.Sprintf("%s:%d JSON marshal/unmarshal inside a loop", path, i+1)})
		case inLoop && debugLogRe.MatchString(line):
			hits = append(hits, perfHit{"low", fmt.Sprintf("%s:%d debug logging inside a loop", path, i+1)})
		}

		if loopStartRe.MatchString(line) {
			stack = append(stack, frame{indent: indent, line: i + 1})
		}
	}
	return hits
}
