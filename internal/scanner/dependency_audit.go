package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	hcversion "github.com/hashicorp/go-version"

	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

// manifestSuffixes are the dependency manifest / lockfile names that
// trigger the Dependency Audit scanner (spec §4.2.2).
var manifestSuffixes = []string{
	"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"go.mod", "go.sum", "requirements.txt", "Pipfile.lock", "poetry.lock",
	"Gemfile.lock", "Cargo.lock",
}

// DependencyAuditScanner is the Post-phase, Warn-by-default scanner
// from spec §4.2.2.
type DependencyAuditScanner struct {
	provider AuditProvider
	timeout  time.Duration
}

// NewDependencyAuditScanner wires an AuditProvider (spec §6) into the
// scanner. timeout bounds the external audit invocation.
func NewDependencyAuditScanner(provider AuditProvider, timeout time.Duration) *DependencyAuditScanner {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &DependencyAuditScanner{provider: provider, timeout: timeout}
}

func (s *DependencyAuditScanner) ID() string                       { return "dependency-audit" }
func (s *DependencyAuditScanner) Name() string                     { return "Dependency Audit" }
func (s *DependencyAuditScanner) Phase() finding.Phase             { return finding.PhasePostExecution }
func (s *DependencyAuditScanner) DefaultSeverity() finding.Severity { return finding.SeverityWarn }
func (s *DependencyAuditScanner) Description() string {
	return "Invokes an external package-audit provider when dependency manifests or lockfiles change."
}

func (s *DependencyAuditScanner) Execute(ctx guardrail.Context, _ finding.Severity) finding.Finding {
	if ctx.Result == nil {
		return finding.Skipped(s.ID(), "no change set to scan (pre-execution context)")
	}
	if !ctx.Result.Touches(manifestSuffixes...) {
		return finding.Skipped(s.ID(), "change set does not touch a dependency manifest or lockfile")
	}
	if s.provider == nil {
		return finding.Skipped(s.ID(), "no audit provider configured")
	}

	execCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	vulns, err := s.provider.Audit(execCtx, ctx.Repository.Path)
	if err != nil {
		return finding.Finding{
			ScannerID:   s.ID(),
			Status:      finding.StatusSkipped,
			Severity:    finding.SeverityWarn,
			Message:     "audit provider invocation failed",
			DetailLines: []string{err.Error()},
		}
	}

	return aggregateVulns(s.ID(), vulns)
}

func aggregateVulns(scannerID string, vulns []Vulnerability) finding.Finding {
	if len(vulns) == 0 {
		return finding.Passed(scannerID, "no known vulnerabilities in changed dependencies")
	}

	var critical, highOrModerate, lowOnly []string
	for _, v := range vulns {
		line := formatVuln(v)
		switch v.Severity {
		case VulnCritical:
			critical = append(critical, line)
		case VulnHigh, VulnModerate:
			highOrModerate = append(highOrModerate, line)
		default:
			lowOnly = append(lowOnly, line)
		}
	}

	switch {
	case len(critical) > 0:
		suggestions := []string{"Upgrade to a patched version before merging.", "Pin the dependency to the recommended patched range."}
		return finding.Failed(scannerID, finding.SeverityBlock,
			fmt.Sprintf("%d critical vulnerabilit(ies) in changed dependencies", len(critical)),
			critical, suggestions)
	case len(highOrModerate) > 0:
		return finding.Warning(scannerID,
			fmt.Sprintf("%d high/moderate vulnerabilit(ies) in changed dependencies", len(highOrModerate)),
			highOrModerate, []string{"Review and upgrade affected packages when feasible."})
	default:
		return finding.Passed(scannerID, fmt.Sprintf("%d low/informational advisories noted", len(lowOnly)))
	}
}

func formatVuln(v Vulnerability) string {
	patched := v.PatchedVersions
	if patched == "" {
		patched = "unknown"
	}
	behind := versionIsBehind(v.Version, patched)
	status := "current"
	if behind {
		status = "outdated"
	}
	return fmt.Sprintf("%s %s (%s): %s - patched: %s [%s] - %s",
		v.Package, v.Version, v.Severity, v.Title, patched, status, v.Recommendation)
}

// versionIsBehind reports whether current is older than the first
// comparable version named in the (possibly range-shaped) patched
// string, using semver comparison so the audit aggregation can tell a
// merely-listed advisory apart from one the change set actually ships.
func versionIsBehind(current, patched string) bool {
	cur, err := hcversion.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return true
	}
	for _, field := range strings.FieldsFunc(patched, func(r rune) bool {
		return r == ',' || r == ' ' || r == '>' || r == '='
	}) {
		candidate, err := hcversion.NewVersion(strings.TrimPrefix(field, "v"))
		if err != nil {
			continue
		}
		if cur.LessThan(candidate) {
			return true
		}
		return false
	}
	return true
}
