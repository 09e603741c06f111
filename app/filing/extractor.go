package filing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Extractor runs the whole engine over one submission at a time. It holds no
// per-filing state, so one Extractor can serve every filing of a run.
type Extractor struct {
	rules      *Rules
	normalizer *Normalizer
	locator    *SectionLocator
	segmenter  *Segmenter
	exhibits   *ExhibitExtractor
	resolver   *ReferenceResolver
}

func NewExtractor() *Extractor {
	return NewExtractorWithRules(DefaultRules())
}

func NewExtractorWithRules(rules *Rules) *Extractor {
	normalizer := NewNormalizer(rules)
	locator := NewSectionLocator(normalizer)
	return &Extractor{
		rules:      rules,
		normalizer: normalizer,
		locator:    locator,
		segmenter:  NewSegmenter(rules),
		exhibits:   NewExhibitExtractor(rules, locator),
		resolver:   NewReferenceResolver(rules),
	}
}

// Run extracts items, signature and exhibits from sub. The context is only
// consulted before work starts; a filing is never abandoned half way.
//
// ErrNoSectionsFound is returned together with a Result holding the diagnostic,
// so callers can record the filing as skipped.
func (e *Extractor) Run(ctx context.Context, sub Submission) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state := NewState(sub.Link)
	company := CompanyName(sub.Title)

	text := e.normalizer.Run(sub.Text)
	for _, id := range e.rules.ItemIDs(text) {
		state.Items.Seed(id)
	}

	doc, err := parseMarkup(text)
	if err != nil {
		return nil, err
	}

	sections, err := e.locator.locate(doc)
	if errors.Is(err, ErrNoSectionsFound) {
		state.report(DiagnosticNoSectionsFound, "", "No xbrl or document sections found")
		return state.result(company), err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to locate sections: %w", err)
	}

	e.segmenter.Run(state, sections)
	RepairBoundaries(state)

	documents := sections
	if sections[0].Kind != SectionDocument {
		documents = e.locator.collect(doc, SectionDocument)
	}
	e.exhibits.Run(state, documents)
	e.resolver.Run(state)

	result := state.result(company)
	slog.Debug("Filing extracted",
		"filing", sub.Link,
		"company", company,
		"sections", len(sections),
		"items", len(result.Items),
		"exhibits", len(result.Exhibits),
		"diagnostics", len(result.Diagnostics))

	return result, nil
}

// result finalizes the state. Items with no text are reported as missing.
func (s *State) result(company string) *Result {
	result := &Result{
		Company:   company,
		Link:      s.Link,
		Signature: strings.Join(s.Signature, " "),
	}

	for _, id := range s.Items.IDs() {
		text := s.Items.Text(id)
		if text == "" {
			s.report(DiagnosticMissingItemContent, id, "Expected item %s but found no text for it", id)
		}
		result.Items = append(result.Items, Item{ID: id, Text: text})
	}

	for _, title := range s.Exhibits.Titles() {
		result.Exhibits = append(result.Exhibits, Exhibit{
			Title:    title,
			Body:     s.Exhibits.Body(title),
			RefersTo: s.Exhibits.RefersTo(title),
		})
	}

	result.Diagnostics = append([]Diagnostic(nil), s.Diagnostics...)
	return result
}

// WriteText renders the result as the line-oriented report.
func (r *Result) WriteText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Company: %s\n", r.Company)
	fmt.Fprintf(&b, "URL: %s\n\n", r.Link)

	for _, item := range r.Items {
		if item.Text == "" {
			continue
		}
		fmt.Fprintf(&b, "Item: %s: %s\n\n", item.ID, item.Text)
	}

	fmt.Fprintf(&b, "Signature: %s\n\n", r.Signature)

	for _, exhibit := range r.Exhibits {
		value := exhibit.Value()
		if value == "" {
			continue
		}
		fmt.Fprintf(&b, "Document %s: %s\n\n", exhibit.Title, value)
	}

	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
