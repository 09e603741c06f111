package filing

import (
	"slices"
)

// RepairBoundaries recovers items whose heading was swallowed as plain text by
// the item before them. For every empty item the nearest preceding non-empty item
// is searched for a fragment equal to the empty item's id; the fragments after
// it move to the empty item and the ones before it stay where they were.
func RepairBoundaries(state *State) {
	previous := ""
	for _, id := range state.Items.IDs() {
		if state.Items.Text(id) == "" && previous != "" {
			fragments := state.Items.Fragments(previous)
			if at := slices.Index(fragments, id); at >= 0 {
				head := slices.Clone(fragments[:at])
				tail := slices.Clone(fragments[at+1:])
				state.Items.Set(previous, head)
				state.Items.Set(id, tail)
				state.report(DiagnosticRepairedItem, id, "Recovered item %s from item %s", id, previous)
			}
		}

		if state.Items.Text(id) != "" {
			previous = id
		}
	}
}
