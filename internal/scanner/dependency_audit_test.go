package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

type fakeAuditProvider struct {
	vulns []Vulnerability
	err   error
}

func (f *fakeAuditProvider) Audit(ctx context.Context, repoPath string) ([]Vulnerability, error) {
	return f.vulns, f.err
}

func TestDependencyAuditSkipsWithoutManifestChange(t *testing.T) {
	s := NewDependencyAuditScanner(&fakeAuditProvider{}, time.Second)
	ctx := guardrail.Context{Result: &guardrail.ChangeSet{Changes: []guardrail.Change{{Path: "main.go"}}}}
	f := s.Execute(ctx, finding.SeverityWarn)
	if f.Status != finding.StatusSkipped {
		t.Fatalf("expected skipped, got %+v", f)
	}
}

func TestDependencyAuditSkipsWithoutProvider(t *testing.T) {
	s := NewDependencyAuditScanner(nil, time.Second)
	ctx := guardrail.Context{Result: &guardrail.ChangeSet{Changes: []guardrail.Change{{Path: "go.mod"}}}}
	f := s.Execute(ctx, finding.SeverityWarn)
	if f.Status != finding.StatusSkipped {
		t.Fatalf("expected skipped, got %+v", f)
	}
}

func TestDependencyAuditBlocksOnCritical(t *testing.T) {
	s := NewDependencyAuditScanner(&fakeAuditProvider{vulns: []Vulnerability{
		{Severity: VulnCritical, Title: "RCE", Package: "leftpad", Version: "1.0.0", PatchedVersions: ">=1.0.1", Recommendation: "upgrade"},
	}}, time.Second)
	ctx := guardrail.Context{Repository: guardrail.RepositoryHandle{Path: "."}, Result: &guardrail.ChangeSet{Changes: []guardrail.Change{{Path: "go.mod"}}}}
	f := s.Execute(ctx, finding.SeverityWarn)
	if !f.Blocks() {
		t.Fatalf("expected a critical vulnerability to block, got %+v", f)
	}
}

func TestDependencyAuditWarnsOnHigh(t *testing.T) {
	s := NewDependencyAuditScanner(&fakeAuditProvider{vulns: []Vulnerability{
		{Severity: VulnHigh, Title: "XSS", Package: "foo", Version: "2.0.0", PatchedVersions: ">=2.0.1"},
	}}, time.Second)
	ctx := guardrail.Context{Repository: guardrail.RepositoryHandle{Path: "."}, Result: &guardrail.ChangeSet{Changes: []guardrail.Change{{Path: "go.mod"}}}}
	f := s.Execute(ctx, finding.SeverityWarn)
	if f.Status != finding.StatusWarning {
		t.Fatalf("expected a warning finding, got %+v", f)
	}
}

func TestDependencyAuditPassesWhenNoVulnerabilities(t *testing.T) {
	s := NewDependencyAuditScanner(&fakeAuditProvider{}, time.Second)
	ctx := guardrail.Context{Repository: guardrail.RepositoryHandle{Path: "."}, Result: &guardrail.ChangeSet{Changes: []guardrail.Change{{Path: "go.sum"}}}}
	f := s.Execute(ctx, finding.SeverityWarn)
	if f.Status != finding.StatusPassed {
		t.Fatalf("expected passed, got %+v", f)
	}
}

func TestDependencyAuditDegradesOnProviderError(t *testing.T) {
	s := NewDependencyAuditScanner(&fakeAuditProvider{err: errors.New("network down")}, time.Second)
	ctx := guardrail.Context{Repository: guardrail.RepositoryHandle{Path: "."}, Result: &guardrail.ChangeSet{Changes: []guardrail.Change{{Path: "go.mod"}}}}
	f := s.Execute(ctx, finding.SeverityWarn)
	if f.Status != finding.StatusSkipped {
		t.Fatalf("expected provider errors to degrade to skipped, got %+v", f)
	}
}

func TestVersionIsBehind(t *testing.T) {
	if !versionIsBehind("1.0.0", ">=1.0.1") {
		t.Fatal("expected 1.0.0 to be behind 1.0.1")
	}
	if versionIsBehind("1.0.2", ">=1.0.1") {
		t.Fatal("expected 1.0.2 to not be behind 1.0.1")
	}
}
