package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/MegaManSec/SEC-Feed-Parser/app/cfg"
	"github.com/MegaManSec/SEC-Feed-Parser/app/database"
)

// Generator re-publishes extracted filings as RSS 2.0.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders filings of feed. requiredItems picks the items whose text becomes
// the entry description; every non-empty item is used when it is empty.
func (g *Generator) Run(feed database.Feed, filings []database.Filing, requiredItems []string) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(feed.Title, feed.Name), 4)
	g.writeElement(&buf, "link", cmp.Or(feed.Link, feed.FeedURL), 4)
	g.writeElement(&buf, "description", fmt.Sprintf("Extracted filings from %s", feed.FeedURL), 4)

	var selfLink string
	if cfg.Get().BaseUrl != "" {
		selfLink = fmt.Sprintf("%s/feeds/%s", cfg.Get().BaseUrl, feed.Name)
	} else {
		selfLink = fmt.Sprintf("http://localhost:%s/feeds/%s", cfg.Get().Port, feed.Name)
	}
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	if feed.FeedUpdatedAt != nil {
		g.writeElement(&buf, "pubDate", feed.FeedUpdatedAt.Format(time.RFC1123Z), 4)
	}

	lastBuildDate := time.Now().In(time.Local)
	if len(filings) > 0 {
		lastBuildDate = cmp.Or(filings[0].PublishedAt, filings[0].CreatedAt, lastBuildDate)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("SEC-Feed-Parser/%s", cfg.Get().Version), 4)
	g.writeElement(&buf, "language", "en-us", 4)

	for _, f := range filings {
		g.writeItem(&buf, f, requiredItems)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, f database.Filing, requiredItems []string) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(f.AccessionNumber))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", f.Title, 6)
	g.writeElement(buf, "link", f.Link, 6)
	g.writeElement(buf, "description", cmp.Or(g.description(f, requiredItems), "No item text extracted"), 6)

	if report := g.report(f); report != "" {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(report, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", f.PublishedAt.Format(time.RFC1123Z), 6)

	for _, code := range f.ItemCodes {
		g.writeElement(buf, "category", "Item "+code, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) description(f database.Filing, requiredItems []string) string {
	var parts []string
	for _, item := range f.Items {
		if item.Text == "" {
			continue
		}
		if len(requiredItems) > 0 && !containsFold(requiredItems, item.ID) {
			continue
		}
		parts = append(parts, fmt.Sprintf("Item %s: %s", item.ID, item.Text))
	}
	return strings.Join(parts, "\n\n")
}

func (g *Generator) report(f database.Filing) string {
	if len(f.Items) == 0 && len(f.Exhibits) == 0 {
		return ""
	}

	var b strings.Builder
	if err := f.Result().WriteText(&b); err != nil {
		return ""
	}
	return "<pre>" + html.EscapeString(b.String()) + "</pre>"
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
