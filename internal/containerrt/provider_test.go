package containerrt

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func writeFakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binary script assumes a POSIX shell")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-docker")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPingReportsReachableRuntime(t *testing.T) {
	p := &Provider{Binary: writeFakeBinary(t, "exit 0\n")}
	if !p.Ping(context.Background(), time.Second) {
		t.Fatal("expected Ping to report the fake runtime as reachable")
	}
}

func TestPingReportsUnreachableRuntime(t *testing.T) {
	p := &Provider{Binary: writeFakeBinary(t, "exit 1\n")}
	if p.Ping(context.Background(), time.Second) {
		t.Fatal("expected Ping to report the fake runtime as unreachable")
	}
}

func TestRunCapturesExitCode(t *testing.T) {
	p := &Provider{Binary: writeFakeBinary(t, "echo out; echo err 1>&2; exit 3\n")}
	result, err := p.Run(context.Background(), RunSpec{
		Image:   "sge-sandbox:latest",
		Command: []string{"./run.sh"},
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", result.ExitCode)
	}
	if result.Stdout == "" || result.Stderr == "" {
		t.Fatalf("expected captured stdout/stderr, got %+v", result)
	}
}

func TestRunReportsTimeout(t *testing.T) {
	p := &Provider{Binary: writeFakeBinary(t, "sleep 5\n")}
	result, err := p.Run(context.Background(), RunSpec{
		Image:   "sge-sandbox:latest",
		Command: []string{"./slow.sh"},
		Timeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.TimedOut {
		t.Fatal("expected the container run to report a timeout")
	}
}
