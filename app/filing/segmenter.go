package filing

import (
	"strings"
)

type segmentState int

const (
	statePreItem segmentState = iota
	stateInItem
	stateSignature
)

func (s segmentState) String() string {
	switch s {
	case statePreItem:
		return "pre_item"
	case stateInItem:
		return "in_item"
	case stateSignature:
		return "signature"
	}
	return "unknown"
}

// Segmenter assigns the lines of located sections to items or to the signature
// block.
type Segmenter struct {
	rules *Rules
}

func NewSegmenter(rules *Rules) *Segmenter {
	return &Segmenter{rules: rules}
}

// Run walks the sections in order. Every section starts before any item; once the
// signature marker has been seen the rest of that section is signature text and
// later sections are not read.
func (s *Segmenter) Run(state *State, sections []Section) {
	reachedSignature := false
	for _, section := range sections {
		if reachedSignature {
			break
		}
		reachedSignature = s.segment(state, section.Text)
	}
	s.expectExhibits(state)
}

// segment consumes the lines of one section and reports whether the signature
// block was entered.
func (s *Segmenter) segment(state *State, text string) bool {
	current := statePreItem
	item := ""

	for _, line := range strings.Split(text, "\n") {
		if current == stateSignature {
			state.Signature = append(state.Signature, line)
			continue
		}

		id, rest, isHeading, err := s.rules.SplitHeadingLine(line)
		if err != nil {
			state.report(DiagnosticUnexpectedSplitShape, line, "Skipping line with unexpected heading shape (state %s)", current)
			continue
		}
		if isHeading {
			current, item = stateInItem, id
			state.Items.Append(item, rest)
			continue
		}

		if s.rules.IsSignatureMarker(line) {
			current = stateSignature
			continue
		}

		if current == statePreItem {
			continue
		}
		state.Items.Append(item, line)
	}

	return current == stateSignature
}

// expectExhibits seeds the exhibit map with every number the exhibit-list item
// mentions.
func (s *Segmenter) expectExhibits(state *State) {
	for _, fragment := range state.Items.Fragments(ExhibitListItem) {
		for _, number := range s.rules.ExhibitNumbers(fragment) {
			state.Exhibits.Expect(number)
		}
	}
}
