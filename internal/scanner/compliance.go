package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

// complianceSeverity mirrors the secret catalog's two-tier severity, but
// for regulatory concerns rather than credential exposure.
type complianceSeverity string

const (
	complianceCritical complianceSeverity = "critical"
	complianceHigh     complianceSeverity = "high"
)

// windowRule flags trigger on a line and expects safeguard to appear
// within window lines of it; if the safeguard never shows up, the
// trigger line is reported as a compliance gap (spec §4.2.5's
// "regulatory pattern windows").
type windowRule struct {
	regulation string
	trigger    *regexp.Regexp
	safeguard  *regexp.Regexp
	window     int
	severity   complianceSeverity
	guidance   string
}

var complianceCatalog = []windowRule{
	{
		regulation: "GDPR",
		trigger:    regexp.MustCompile(`(?i)\b(email|full_?name|address|personal_?data|date_?of_?birth)\b`),
		safeguard:  regexp.MustCompile(`(?i)\b(consent|anonymiz|pseudonymiz|encrypt|gdpr)\b`),
		window:     8,
		severity:   complianceHigh,
		guidance:   "Record explicit consent or anonymize the field before persisting personal data.",
	},
	{
		regulation: "HIPAA",
		trigger:    regexp.MustCompile(`(?i)\b(diagnosis|patient|medical_?record|treatment|phi)\b`),
		safeguard:  regexp.MustCompile(`(?i)\b(encrypt|access_?control|audit_?log|hipaa|phi_?redact)\b`),
		window:     8,
		severity:   complianceCritical,
		guidance:   "Protected health information must be encrypted at rest and access-logged.",
	},
	{
		regulation: "CCPA",
		trigger:    regexp.MustCompile(`(?i)\b(sell_?data|third_?party_?share|sale_?of_?data)\b`),
		safeguard:  regexp.MustCompile(`(?i)\b(opt_?out|do_?not_?sell|ccpa)\b`),
		window:     8,
		severity:   complianceHigh,
		guidance:   "Provide a do-not-sell / opt-out path alongside any third-party data sale or sharing.",
	},
	{
		regulation: "SOC2",
		trigger:    regexp.MustCompile(`(?i)\b(credential|access_?token|admin_?action|privileged)\b`),
		safeguard:  regexp.MustCompile(`(?i)\b(audit_?log|log\.(?:info|warn|error)|soc2)\b`),
		window:     10,
		severity:   complianceHigh,
		guidance:   "Privileged actions and credential handling should emit an audit log entry.",
	},
}

// ComplianceScanner is the Post-phase, Warn-by-default scanner from spec
// §4.2.5: it looks for sensitive-data or privileged-action patterns that
// lack a nearby regulatory safeguard marker.
type ComplianceScanner struct{}

// NewComplianceScanner constructs the compliance scanner.
func NewComplianceScanner() *ComplianceScanner { return &ComplianceScanner{} }

func (s *ComplianceScanner) ID() string                       { return "compliance" }
func (s *ComplianceScanner) Name() string                     { return "Compliance" }
func (s *ComplianceScanner) Phase() finding.Phase             { return finding.PhasePostExecution }
func (s *ComplianceScanner) DefaultSeverity() finding.Severity { return finding.SeverityWarn }
func (s *ComplianceScanner) Description() string {
	return "Flags sensitive-data or privileged-action patterns (GDPR, HIPAA, CCPA, SOC2) with no safeguard nearby."
}

func (s *ComplianceScanner) Execute(ctx guardrail.Context, effectiveSeverity finding.Severity) finding.Finding {
	if ctx.Result == nil {
		return finding.Skipped(s.ID(), "no change set to scan (pre-execution context)")
	}

	var critical, high []string
	for _, change := range ctx.Result.Changes {
		lines := strings.Split(change.NewContent, "\n")
		for _, rule := range complianceCatalog {
			for i, line := range lines {
				if !rule.trigger.MatchString(line) {
					continue
				}
				if safeguardNearby(lines, i, rule.window, rule.safeguard) {
					continue
				}
				detail := fmt.Sprintf("%s:%d [%s] %s - %s", change.Path, i+1, rule.regulation, strings.TrimSpace(line), rule.guidance)
				if rule.severity == complianceCritical {
					critical = append(critical, detail)
				} else {
					high = append(high, detail)
				}
			}
		}
	}

	if len(critical) == 0 && len(high) == 0 {
		return finding.Passed(s.ID(), "no regulatory pattern gaps detected")
	}

	all := append(append([]string{}, critical...), high...)
	suggestions := []string{
		"Add the matching safeguard marker (consent capture, encryption, audit logging) near the flagged line.",
		"Consult the data classification policy for the regulation named in each finding.",
	}
	message := fmt.Sprintf("%d critical, %d high regulatory pattern gap(s) detected", len(critical), len(high))

	if len(critical) > 0 && effectiveSeverity == finding.SeverityBlock {
		return finding.Failed(s.ID(), finding.SeverityBlock, message, all, suggestions)
	}
	return finding.Warning(s.ID(), message, all, suggestions)
}

// safeguardNearby reports whether safeguard matches any line within
// window lines before or after lines[at].
func safeguardNearby(lines []string, at, window int, safeguard *regexp.Regexp) bool {
	lo := at - window
	if lo < 0 {
		lo = 0
	}
	hi := at + window
	if hi >= len(lines) {
		hi = len(lines) - 1
	}
	for i := lo; i <= hi; i++ {
		if safeguard.MatchString(lines[i]) {
			return true
		}
	}
	return false
}
