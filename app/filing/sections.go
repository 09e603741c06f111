package filing

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

type SectionKind string

const (
	SectionXBRL     SectionKind = "xbrl"
	SectionDocument SectionKind = "document"
)

// Section is one top-level block of a submission.
type Section struct {
	Kind   SectionKind
	Markup string // rendered block, used for header matching
	Text   string // normalized text content

	sel *goquery.Selection
}

// Find returns the first descendant element with the given tag name.
func (s Section) Find(tag string) *goquery.Selection {
	if s.sel == nil {
		return nil
	}
	found := s.sel.Find(tag).First()
	if found.Length() == 0 {
		return nil
	}
	return found
}

// SectionLocator finds the blocks of a submission that carry disclosure text.
type SectionLocator struct {
	normalizer *Normalizer
}

func NewSectionLocator(normalizer *Normalizer) *SectionLocator {
	return &SectionLocator{normalizer: normalizer}
}

// Run returns every xbrl block, or every document block when the submission has
// no xbrl. ErrNoSectionsFound is returned when neither exists.
func (l *SectionLocator) Run(text string) ([]Section, error) {
	doc, err := parseMarkup(text)
	if err != nil {
		return nil, err
	}
	return l.locate(doc)
}

func (l *SectionLocator) locate(doc *goquery.Document) ([]Section, error) {
	sections := l.collect(doc, SectionXBRL)
	if len(sections) == 0 {
		sections = l.collect(doc, SectionDocument)
	}
	if len(sections) == 0 {
		return nil, ErrNoSectionsFound
	}
	return sections, nil
}

// Documents returns every document block regardless of xbrl presence.
func (l *SectionLocator) Documents(text string) ([]Section, error) {
	doc, err := parseMarkup(text)
	if err != nil {
		return nil, err
	}
	return l.collect(doc, SectionDocument), nil
}

func (l *SectionLocator) collect(doc *goquery.Document, kind SectionKind) []Section {
	var sections []Section
	doc.Find(string(kind)).Each(func(_ int, sel *goquery.Selection) {
		markup, err := goquery.OuterHtml(sel)
		if err != nil {
			markup = ""
		}
		sections = append(sections, Section{
			Kind:   kind,
			Markup: CleanText(markup),
			Text:   l.Text(sel),
			sel:    sel,
		})
	})
	return sections
}

// Text returns the normalized text content of a selection.
func (l *SectionLocator) Text(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	var parts []string
	for _, node := range sel.Nodes {
		parts = appendTextNodes(parts, node)
	}
	return l.normalizer.Run(strings.Join(parts, "\n"))
}

// appendTextNodes collects every non-blank text node below n, trimmed, in
// document order. Script and style bodies are not text.
func appendTextNodes(parts []string, n *html.Node) []string {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			parts = append(parts, t)
		}
		return parts
	case html.ElementNode:
		switch n.Data {
		case "script", "style":
			return parts
		}
	case html.CommentNode:
		return parts
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parts = appendTextNodes(parts, c)
	}
	return parts
}

func parseMarkup(text string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse submission markup: %w", err)
	}
	return doc, nil
}
