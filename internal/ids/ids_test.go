package ids_test

import (
	"testing"

	"github.com/google/uuid"

	"pkt.systems/tellerd/internal/ids"
)

func TestTransactionIsUUIDv7(t *testing.T) {
	t.Parallel()

	raw := ids.Transaction()
	parsed, err := uuid.Parse(raw)
	if err != nil {
		t.Fatalf("uuid.Parse(%q): %v", raw, err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
	if other := ids.Transaction(); other == raw {
		t.Fatal("expected unique ids on subsequent calls")
	}
}

func TestCorrelationIsNonEmptyAndUnique(t *testing.T) {
	t.Parallel()

	a, b := ids.Correlation(), ids.Correlation()
	if a == "" || b == "" {
		t.Fatal("expected non-empty correlation ids")
	}
	if a == b {
		t.Fatal("expected unique correlation ids")
	}
}
