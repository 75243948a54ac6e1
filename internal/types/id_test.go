package types

import (
	"encoding/hex"
	"testing"
)

func TestNewID(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 32 {
			t.Fatalf("expected 32 chars, got %q", id)
		}
		if _, err := hex.DecodeString(id.String()); err != nil {
			t.Fatalf("not lowercase hex: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
