package filing

import (
	"regexp"
	"strings"
)

const (
	// FilingType is the form code of the submissions this package reads.
	FilingType = "8-K"

	// ExhibitListItem is the catch-all "Financial Statements and Exhibits" item.
	ExhibitListItem = "9.01"

	// skippedResolutionTitle is never resolved against the exhibit list.
	skippedResolutionTitle = "104"
)

// Rules holds every pattern the engine matches against. Each one is usable on its
// own so it can be tested apart from the segmenter that consumes it.
type Rules struct {
	// Heading matches an item heading at the start of a line. Group 1 is the id,
	// the remainder of the line follows the match.
	Heading *regexp.Regexp

	// HeadingAnywhere finds item ids anywhere in a text.
	HeadingAnywhere *regexp.Regexp

	// SplitHeading matches "Item" and its number separated by a line break.
	SplitHeading *regexp.Regexp

	// SplitItemWord matches "I\ntem" followed by a number.
	SplitItemWord *regexp.Regexp

	// Signature matches a full, trimmed line that opens the signature block.
	Signature *regexp.Regexp

	// ExhibitNumber finds dotted exhibit numbers in exhibit-list prose.
	ExhibitNumber *regexp.Regexp

	// ItemPrefix matches text ending in "Item " just before an exhibit number.
	ItemPrefix *regexp.Regexp

	// ExhibitType matches the type header of an exhibit document block.
	ExhibitType *regexp.Regexp

	// Filename matches the filename header of a document block.
	Filename *regexp.Regexp

	// ExhibitReference matches "exhibit D.D" inside exhibit-list prose.
	ExhibitReference *regexp.Regexp

	// ExcludedExtensions lists attachment extensions that are never read as text.
	ExcludedExtensions []string
}

// DefaultRules returns the patterns tuned against EDGAR 8-K submissions.
func DefaultRules() *Rules {
	return &Rules{
		Heading:          regexp.MustCompile(`(?i)^Item[^\d\n]?[^\d\n]?(\d+\.\d+)(?:\. )?`),
		HeadingAnywhere:  regexp.MustCompile(`(?i)Item[^\d\n]?[^\d\n]?(\d+\.\d+)`),
		SplitHeading:     regexp.MustCompile(`(?i)Item[^\d\n]?[^\d\n]?\n[^\d\n]?[^\d\n]?(\d+\.\d+)`),
		SplitItemWord:    regexp.MustCompile(`(?i)I\ntem[^\d\n]?[^\d\n]?(\d+\.\d+)`),
		Signature:        regexp.MustCompile(`(?i)^(?:signa ?tures?|signature\(s\))$`),
		ExhibitNumber:    regexp.MustCompile(`\d+\.\d+`),
		ItemPrefix:       regexp.MustCompile(`(?i)\bItem\s$`),
		ExhibitType:      regexp.MustCompile(`(?i)\n<TYPE>(EX-[\d.]+)[0-9A-Za-z\- ]*\n`),
		Filename:         regexp.MustCompile(`(?i)\n<FILENAME>(.*?)\n`),
		ExhibitReference: regexp.MustCompile(`(?i)\bexhibit\s+(\d+\.\d+)`),
		ExcludedExtensions: []string{
			".pdf",
		},
	}
}

// SplitHeadingLine separates a heading line into its item id and the text after the
// heading. ok is false when the line is not a heading. A match that does not
// produce an id is reported as ErrUnexpectedSplitShape.
func (r *Rules) SplitHeadingLine(line string) (id, rest string, ok bool, err error) {
	loc := r.Heading.FindStringSubmatchIndex(line)
	if loc == nil {
		return "", "", false, nil
	}
	if loc[0] != 0 || len(loc) < 4 || loc[2] < 0 || loc[2] == loc[3] {
		return "", "", false, ErrUnexpectedSplitShape
	}
	return strings.ToLower(line[loc[2]:loc[3]]), line[loc[1]:], true, nil
}

// IsSignatureMarker reports whether a line opens the signature block.
func (r *Rules) IsSignatureMarker(line string) bool {
	return r.Signature.MatchString(strings.TrimSpace(line))
}

// ItemIDs returns every item id mentioned in text, lower-cased, in order of
// appearance and without duplicates.
func (r *Rules) ItemIDs(text string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, m := range r.HeadingAnywhere.FindAllStringSubmatch(text, -1) {
		id := strings.ToLower(m[1])
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// ExhibitNumbers returns the dotted numbers in text that are not item headings.
func (r *Rules) ExhibitNumbers(text string) []string {
	var numbers []string
	for _, loc := range r.ExhibitNumber.FindAllStringIndex(text, -1) {
		// "Item " plus the character before it is enough for the boundary check.
		if r.ItemPrefix.MatchString(text[max(0, loc[0]-6):loc[0]]) {
			continue
		}
		numbers = append(numbers, text[loc[0]:loc[1]])
	}
	return numbers
}

// IsExcludedFilename reports whether a filename header names a non-text attachment.
func (r *Rules) IsExcludedFilename(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range r.ExcludedExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// ReferencedExhibits returns the exhibit numbers named as "exhibit D.D" in text.
func (r *Rules) ReferencedExhibits(text string) []string {
	var refs []string
	for _, m := range r.ExhibitReference.FindAllStringSubmatch(text, -1) {
		refs = append(refs, m[1])
	}
	return refs
}
