package aiprovider

import (
	"context"
	"testing"
)

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), "", "gemini-2.0-flash"); err == nil {
		t.Fatal("expected a missing API key to be rejected")
	}
}
