package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"regexp"
	"strings"

	"github.com/MegaManSec/SEC-Feed-Parser/app/filing"
	"github.com/mmcdole/gofeed"
)

var accessionNumber = regexp.MustCompile(`\d{10}-\d{2}-\d{6}`)

type Parser struct {
	gofeedParser *gofeed.Parser
	rules        *filing.Rules
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		rules:        filing.DefaultRules(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:         feed.Title,
		Link:          feed.Link,
		FeedUpdatedAt: feed.UpdatedParsed,
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, p.normalizeEntry(item))
	}

	return metadata, entries, nil
}

func (p *Parser) normalizeEntry(item *gofeed.Item) Entry {
	summary := cmp.Or(item.Description, item.Content)

	entry := Entry{
		GUID:            cmp.Or(item.GUID, item.Link),
		Title:           strings.TrimSpace(item.Title),
		Company:         filing.CompanyName(strings.TrimSpace(item.Title)),
		Link:            item.Link,
		Summary:         summary,
		AccessionNumber: cmp.Or(accessionNumber.FindString(item.GUID), accessionNumber.FindString(item.Link)),
		ItemCodes:       p.rules.ItemIDs(summary),
	}

	if len(item.Categories) > 0 {
		entry.FormType = item.Categories[0]
	}

	if item.PublishedParsed != nil {
		entry.PublishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entry.PublishedAt = *item.UpdatedParsed
	}

	if item.UpdatedParsed != nil {
		entry.UpdatedAt = item.UpdatedParsed
	}

	return entry
}

// SubmissionURL turns a filing index link into the link of the full text
// submission.
func SubmissionURL(link string) string {
	url := strings.Replace(link, "-index.html", ".txt", 1)
	return strings.Replace(url, "-index.htm", ".txt", 1)
}
