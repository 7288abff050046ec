package statusserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentops/sge/internal/coordinator"
	"github.com/agentops/sge/internal/finding"
)

func TestHealthzAlwaysOK(t *testing.T) {
	s := New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", rec.Body.String())
	}
}

func TestStatusReturnsNoContentBeforeAnyRecord(t *testing.T) {
	s := New()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 before any result is recorded, got %d", rec.Code)
	}
}

func TestStatusReturnsRecordedResultAsJSON(t *testing.T) {
	s := New()
	s.Record(coordinator.Result{
		PreResult: finding.NewPipelineResult(finding.PhasePreExecution, nil),
		Blocked:   false,
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected JSON content type, got %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected a JSON body")
	}
}

func TestStatusRejectsNonGETMethods(t *testing.T) {
	s := New()
	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST /status, got %d", rec.Code)
	}
}
