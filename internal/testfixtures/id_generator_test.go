package testfixtures

import (
	"slices"
	"testing"
)

func TestIDGenerator_Sequence(t *testing.T) {
	gen := NewIDGenerator("schedule")
	next := gen.NextFunc()

	if first, second := next(), gen.Next(); first != "schedule-1" || second != "schedule-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if got := gen.Issued(); !slices.Equal(got, []string{"schedule-1", "schedule-2"}) {
		t.Fatalf("unexpected issued ids %v", got)
	}
}

func TestIDGenerator_DefaultPrefix(t *testing.T) {
	if id := NewIDGenerator("").Next(); id != "id-1" {
		t.Fatalf("expected id-1, got %q", id)
	}
}
