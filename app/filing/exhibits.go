package filing

import (
	"strings"
)

// ExhibitExtractor pulls exhibit bodies out of document blocks.
type ExhibitExtractor struct {
	rules   *Rules
	locator *SectionLocator
}

func NewExhibitExtractor(rules *Rules, locator *SectionLocator) *ExhibitExtractor {
	return &ExhibitExtractor{rules: rules, locator: locator}
}

// Run adds every exhibit found in documents to the state's exhibit map.
func (e *ExhibitExtractor) Run(state *State, documents []Section) {
	for _, document := range documents {
		if document.Kind != SectionDocument {
			continue
		}
		e.extract(state, document)
	}
}

func (e *ExhibitExtractor) extract(state *State, document Section) {
	match := e.rules.ExhibitType.FindStringSubmatch(document.Markup)
	if match == nil {
		return
	}
	title := match[1]

	if filename := e.rules.Filename.FindStringSubmatch(document.Markup); filename != nil && e.rules.IsExcludedFilename(filename[1]) {
		state.report(DiagnosticSkippedExhibit, title, "Skipping exhibit document %s: not a text attachment", filename[1])
		return
	}

	if title == "" || strings.HasSuffix(title, ".") || title == FilingType {
		state.report(DiagnosticSkippedExhibit, title, "Skipping exhibit with unusable title %q", title)
		return
	}

	short := ShortTitle(title)
	if short == "" || short == "." {
		state.report(DiagnosticSkippedExhibit, title, "Skipping exhibit with empty short title")
		return
	}

	if known := state.Exhibits.Add(short); !known {
		state.report(DiagnosticUnexpectedExhibitTitle, short, "Found exhibit %s (title: %s) that the exhibit list did not mention", short, title)
	}

	body := document.Find("text")
	if body == nil {
		state.report(DiagnosticMissingExhibitText, short, "Exhibit %s has no text block", short)
		return
	}

	text := e.locator.Text(body)
	if text == "" {
		state.report(DiagnosticMissingExhibitText, short, "Exhibit %s has an empty text block", short)
		return
	}

	for i, line := range strings.Split(text, "\n") {
		if i == 0 && (line == "Exhibit "+short || line == title) {
			continue
		}
		state.Exhibits.AppendLine(short, line)
	}
}

// ShortTitle derives the exhibit number from a type header: "EX-2.1" gives "2.1".
// Titles that do not split into exactly two parts on a hyphen are kept whole.
func ShortTitle(title string) string {
	parts := strings.Split(title, "-")
	if len(parts) == 2 {
		return parts[1]
	}
	return title
}
