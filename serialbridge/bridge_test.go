package serialbridge_test

import (
	"testing"
	"time"

	"github.com/example/xtirq/serialbridge"
)

func TestNoResponseErrorMessageNamesTheTimeout(t *testing.T) {
	err := serialbridge.NoResponseError(250 * time.Millisecond)
	var e error = err
	if e.Error() == "" {
		t.Fatalf("expected a non-empty error message")
	}
	if got := err.Error(); got != "serialbridge: no response after 250ms" {
		t.Fatalf("Error() = %q, want %q", got, "serialbridge: no response after 250ms")
	}
}

func TestNoResponseErrorImplementsError(t *testing.T) {
	var _ error = serialbridge.NoResponseError(time.Second)
}
