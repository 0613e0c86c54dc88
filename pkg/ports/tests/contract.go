package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/skillflow/pkg/domain"
	"github.com/aretw0/skillflow/pkg/ports"
)

// ResponseSourceContractTest is a reusable test suite that verifies if an adapter complies with ports.ResponseSource.
// Every value in setupData is expected to be returned verbatim for its key.
func ResponseSourceContractTest(t *testing.T, source ports.ResponseSource, setupData map[string]any) {
	t.Helper()
	ctx := context.Background()

	t.Run("Lookup_Success", func(t *testing.T) {
		for key, expected := range setupData {
			got, err := source.Lookup(ctx, key)
			if err != nil {
				t.Fatalf("unexpected error looking up %s: %v", key, err)
			}
			if want, ok := expected.(string); ok {
				if got != want {
					t.Errorf("template mismatch for %s. got %q, want %q", key, got, want)
				}
			} else if got == nil {
				t.Errorf("structured template %s resolved to nil", key)
			}
		}
	})

	t.Run("Lookup_NotFound", func(t *testing.T) {
		_, err := source.Lookup(ctx, "non-existent-template")
		if err == nil {
			t.Fatal("expected error for non-existent template, got nil")
		}
		if !errors.Is(err, domain.ErrTemplateNotFound) {
			t.Errorf("expected ErrTemplateNotFound, got %v", err)
		}
	})
}
