package filing

import (
	"slices"
	"testing"
)

func TestRepairBoundaries_SplitsSwallowedItem(t *testing.T) {
	state := NewState("")
	state.Items.Seed("1.05")
	state.Items.Seed("2.02")
	state.Items.Set("1.05", []string{"a", "b", "2.02", "c", "d"})

	RepairBoundaries(state)

	if got := state.Items.Fragments("1.05"); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Expected item 1.05 to keep [a b], got %v", got)
	}
	if got := state.Items.Fragments("2.02"); !slices.Equal(got, []string{"c", "d"}) {
		t.Errorf("Expected item 2.02 to receive [c d], got %v", got)
	}
	if len(state.Diagnostics) != 1 || state.Diagnostics[0].Kind != DiagnosticRepairedItem {
		t.Errorf("Expected one repaired item diagnostic, got %v", state.Diagnostics)
	}
}

func TestRepairBoundaries_UsesNearestNonEmptyItem(t *testing.T) {
	state := NewState("")
	state.Items.Set("1.01", []string{"x", "7.01", "y"})
	state.Items.Seed("1.02")
	state.Items.Seed("7.01")

	RepairBoundaries(state)

	if got := state.Items.Fragments("1.01"); !slices.Equal(got, []string{"x"}) {
		t.Errorf("Expected item 1.01 to keep [x], got %v", got)
	}
	if got := state.Items.Fragments("7.01"); !slices.Equal(got, []string{"y"}) {
		t.Errorf("Expected item 7.01 to receive [y], got %v", got)
	}
	if got := state.Items.Text("1.02"); got != "" {
		t.Errorf("Expected item 1.02 to stay empty, got %q", got)
	}
}

func TestRepairBoundaries_TreatsHeadingOnlyItemAsEmpty(t *testing.T) {
	state := NewState("")
	state.Items.Set("2.02", []string{"results", "8.01", "other events"})
	state.Items.Set("8.01", []string{""})

	RepairBoundaries(state)

	if got := state.Items.Text("8.01"); got != "other events" {
		t.Errorf("Expected item 8.01 text 'other events', got %q", got)
	}
}

func TestRepairBoundaries_NoMatchLeavesItemsAlone(t *testing.T) {
	state := NewState("")
	state.Items.Set("1.05", []string{"a", "b"})
	state.Items.Seed("2.02")

	RepairBoundaries(state)

	if got := state.Items.Fragments("1.05"); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Expected item 1.05 unchanged, got %v", got)
	}
	if got := state.Items.Text("2.02"); got != "" {
		t.Errorf("Expected item 2.02 to stay empty, got %q", got)
	}
	if len(state.Diagnostics) != 0 {
		t.Errorf("Expected no diagnostics, got %v", state.Diagnostics)
	}
}
