package scanner

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

// SecretScanner is the Post-phase, Block-by-default scanner from spec
// §4.2.1: it scans every Change's new content line-by-line against the
// fixed secretCatalog and fails the pipeline on any match.
type SecretScanner struct{}

// NewSecretScanner constructs the secret scanner.
func NewSecretScanner() *SecretScanner { return &SecretScanner{} }

func (s *SecretScanner) ID() string                          { return "secret-scanner" }
func (s *SecretScanner) Name() string                        { return "Secret Scanner" }
func (s *SecretScanner) Phase() finding.Phase                { return finding.PhasePostExecution }
func (s *SecretScanner) DefaultSeverity() finding.Severity    { return finding.SeverityBlock }
func (s *SecretScanner) Description() string {
	return "Scans proposed file content for hardcoded credentials, API keys and private key material."
}

func (s *SecretScanner) Execute(ctx guardrail.Context, _ finding.Severity) finding.Finding {
	if ctx.Result == nil {
		return finding.Skipped(s.ID(), "no change set to scan (pre-execution context)")
	}

	// Each changed file is scanned independently, so fan the work out
	// across an errgroup and merge in change-set order below, keeping
	// the resulting detail list deterministic despite the concurrency.
	perFile := make([][]string, len(ctx.Result.Changes))
	var group errgroup.Group
	for i, change := range ctx.Result.Changes {
		i, change := i, change
		group.Go(func() error {
			perFile[i] = scanFileForSecrets(change.Path, change.NewContent)
			return nil
		})
	}
	_ = group.Wait()

	var details []string
	for _, lines := range perFile {
		details = append(details, lines...)
	}

	if len(details) == 0 {
		return finding.Passed(s.ID(), "no secrets detected")
	}

	suggestions := []string{
		"Remove the secret from source and rotate it immediately.",
		"Load credentials from environment variables instead of literals.",
		"Use a secret manager (Vault, AWS Secrets Manager, etc.) for runtime access.",
		"Rotate any credential that may already have been committed to history.",
	}
	return finding.Failed(s.ID(), finding.SeverityBlock,
		fmt.Sprintf("%d potential secret(s) detected in proposed changes", len(details)),
		details, suggestions)
}

// scanFileForSecrets runs the full catalog against one file's content,
// line by line, returning its detail lines in line order.
func scanFileForSecrets(path, content string) []string {
	var details []string
	for lineNo, line := range strings.Split(content, "\n") {
		if hasNegativeMarker(line) {
			continue
		}
		for _, pat := range secretCatalog {
			loc := pat.regex.FindStringIndex(line)
			if loc == nil {
				continue
			}
			matched := line[loc[0]:loc[1]]
			details = append(details, fmt.Sprintf("%s:%d [%s] %s - %s",
				path, lineNo+1, strings.ToUpper(string(pat.severity)), pat.name, redact(matched)))
		}
	}
	return details
}

// redact returns the first 4 and last 4 characters of match joined by
// "...", or "***" if match is 8 characters or fewer (spec §4.2.1,
// testable property 4: no Finding may retain more than 8 contiguous
// characters of any matched secret).
func redact(match string) string {
	if len(match) <= 8 {
		return "***"
	}
	return match[:4] + "..." + match[len(match)-4:]
}
