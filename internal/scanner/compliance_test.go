package scanner

import (
	"regexp"
	"testing"

	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

func TestComplianceSkipsWithoutChangeSet(t *testing.T) {
	s := NewComplianceScanner()
	f := s.Execute(guardrail.Context{}, finding.SeverityWarn)
	if f.Status != finding.StatusSkipped {
		t.Fatalf("expected skipped, got %+v", f)
	}
}

func TestCompliancePassesWithSafeguardNearby(t *testing.T) {
	s := NewComplianceScanner()
	content := "// consent captured before persisting\nstoreRecord(email, address)\n"
	ctx := ctxWithContent("user.go", content)
	f := s.Execute(ctx, finding.SeverityWarn)
	if f.Status != finding.StatusPassed {
		t.Fatalf("expected passed, got %+v", f)
	}
}

func TestComplianceWarnsOnUnsafeguardedGDPRPattern(t *testing.T) {
	s := NewComplianceScanner()
	content := "func save() {\n  storeRecord(email, full_name, address)\n}\n"
	ctx := ctxWithContent("user.go", content)
	f := s.Execute(ctx, finding.SeverityWarn)
	if f.Status != finding.StatusWarning {
		t.Fatalf("expected a warning, got %+v", f)
	}
	if f.Blocks() {
		t.Fatal("expected Warn-severity gap to not block")
	}
}

func TestComplianceBlocksCriticalHIPAAGapAtBlockSeverity(t *testing.T) {
	s := NewComplianceScanner()
	content := "func recordVisit() {\n  save(patient, diagnosis, treatment)\n}\n"
	ctx := ctxWithContent("visit.go", content)
	f := s.Execute(ctx, finding.SeverityBlock)
	if !f.Blocks() {
		t.Fatalf("expected unsafeguarded HIPAA pattern to block at Block severity, got %+v", f)
	}
}

func TestComplianceHighSeverityNeverBlocksEvenAtBlockConfig(t *testing.T) {
	s := NewComplianceScanner()
	content := "func share() {\n  sell_data(userRecord)\n}\n"
	ctx := ctxWithContent("share.go", content)
	f := s.Execute(ctx, finding.SeverityBlock)
	if f.Blocks() {
		t.Fatalf("expected a high (non-critical) CCPA gap to warn rather than block, got %+v", f)
	}
	if f.Status != finding.StatusWarning {
		t.Fatalf("expected a warning, got %+v", f)
	}
}

func TestSafeguardNearbyRespectsWindow(t *testing.T) {
	lines := []string{"trigger", "1", "2", "3", "4", "5", "6", "7", "8", "9", "safeguard: encrypt"}
	safeguard := regexp.MustCompile("encrypt")
	if safeguardNearby(lines, 0, 2, safeguard) {
		t.Fatal("expected safeguard outside the window to not count")
	}
	if !safeguardNearby(lines, 0, 10, safeguard) {
		t.Fatal("expected safeguard inside the window to count")
	}
}
