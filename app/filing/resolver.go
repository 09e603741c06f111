package filing

import (
	"strings"
)

// ReferenceResolver links exhibits that have no body of their own to the exhibit
// the exhibit list says they are part of.
type ReferenceResolver struct {
	rules *Rules
}

func NewReferenceResolver(rules *Rules) *ReferenceResolver {
	return &ReferenceResolver{rules: rules}
}

// Run resolves every empty exhibit it can and reports the rest as unresolved.
// Only the fragment right after the exhibit's own mention is searched for the
// reference; a reference phrase split over several fragments is not followed.
func (r *ReferenceResolver) Run(state *State) {
	fragments := state.Items.Fragments(ExhibitListItem)

	for _, title := range state.Exhibits.Titles() {
		if !state.Exhibits.Empty(title) || title == skippedResolutionTitle {
			continue
		}

		at := indexFold(fragments, title)
		if at < 0 || at+1 >= len(fragments) {
			continue
		}
		for _, ref := range r.rules.ReferencedExhibits(fragments[at+1]) {
			if state.Exhibits.Has(ref) && state.Exhibits.PointAt(title, ref) {
				break
			}
		}
	}

	for _, title := range state.Exhibits.Titles() {
		if state.Exhibits.Empty(title) {
			state.report(DiagnosticUnresolvedExhibit, title, "Expected exhibit %s but found no text for it", title)
		}
	}
}

func indexFold(fragments []string, s string) int {
	for i, fragment := range fragments {
		if strings.EqualFold(fragment, s) {
			return i
		}
	}
	return -1
}
