package finding

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSeverityRank(t *testing.T) {
	if SeverityBlock.Rank() <= SeverityWarn.Rank() {
		t.Fatalf("block must outrank warn")
	}
	if SeverityWarn.Rank() <= SeverityInfo.Rank() {
		t.Fatalf("warn must outrank info")
	}
}

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityBlock, SeverityWarn, SeverityInfo} {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if Severity("critical").Valid() {
		t.Fatal("unknown severity should not be valid")
	}
}

func TestFindingBlocks(t *testing.T) {
	cases := []struct {
		name string
		f    Finding
		want bool
	}{
		{"failed+block blocks", Failed("s", SeverityBlock, "m", nil, nil), true},
		{"failed+warn does not block", Failed("s", SeverityWarn, "m", nil, nil), false},
		{"warning never blocks", Warning("s", "m", nil, nil), false},
		{"passed never blocks", Passed("s", "m"), false},
		{"skipped never blocks", Skipped("s", "reason"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.Blocks(); got != tc.want {
				t.Errorf("Blocks() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewPipelineResultAggregation(t *testing.T) {
	result := NewPipelineResult(PhasePostExecution, []Finding{
		Passed("a", "ok"),
		Warning("b", "heads up", nil, nil),
	})
	if !result.Passed || result.ShouldBlock {
		t.Fatalf("expected non-blocking result, got %+v", result)
	}

	blocked := NewPipelineResult(PhasePostExecution, []Finding{
		Passed("a", "ok"),
		Failed("b", SeverityBlock, "nope", nil, nil),
	})
	if blocked.Passed || !blocked.ShouldBlock {
		t.Fatalf("expected blocking result, got %+v", blocked)
	}
}

func TestNewPipelineResultEmptyPasses(t *testing.T) {
	result := NewPipelineResult(PhasePreExecution, nil)
	if !result.Passed || result.ShouldBlock {
		t.Fatalf("empty findings should pass and not block, got %+v", result)
	}
}

func TestNewPipelineResultPreservesFindingOrder(t *testing.T) {
	in := []Finding{
		Failed("secret-scan", SeverityBlock, "key found", []string{"config.go:3"}, nil),
		Warning("dependency-audit", "outdated package", []string{"leftpad 1.0.0"}, []string{"upgrade"}),
	}
	result := NewPipelineResult(PhasePostExecution, in)

	if diff := cmp.Diff(in, result.Findings); diff != "" {
		t.Fatalf("findings were not preserved verbatim (-want +got):\n%s", diff)
	}
}
