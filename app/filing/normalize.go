package filing

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const nbspEntity = "&#160;"

// textOnly keeps printable ASCII and newlines. Tabs and no-break spaces are
// mapped to spaces before the filter runs so the words they separate stay apart.
var textOnly = transform.Chain(
	runes.Map(func(r rune) rune {
		if r == '\t' || r == '\u00a0' {
			return ' '
		}
		return r
	}),
	runes.Remove(runes.Predicate(func(r rune) bool {
		return r != '\n' && (r < 0x20 || r > 0x7e)
	})),
)

// CleanText removes every character outside the printable-ASCII-plus-newline set.
func CleanText(s string) string {
	out, _, err := transform.String(textOnly, s)
	if err != nil {
		// transform.String only fails on a broken transformer chain.
		return s
	}
	return out
}

// TrimLines trims every line independently.
func TrimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// Normalizer turns raw submission text into clean lines with item headings
// repaired. It is safe to run on any re-derived text and is idempotent.
type Normalizer struct {
	rules *Rules
}

func NewNormalizer(rules *Rules) *Normalizer {
	return &Normalizer{rules: rules}
}

func (n *Normalizer) Run(raw string) string {
	text := CleanText(raw)
	text = strings.ReplaceAll(text, nbspEntity, " ")
	text = TrimLines(text)
	return n.RepairHeadings(text)
}

// RepairHeadings rejoins "Item" headings broken across lines. Every replacement
// removes a line break, so the loop ends once nothing matches.
func (n *Normalizer) RepairHeadings(text string) string {
	for {
		next := n.rules.SplitHeading.ReplaceAllString(text, " Item $1")
		next = n.rules.SplitItemWord.ReplaceAllString(next, "Item $1")
		next = TrimLines(next)
		if next == text {
			return next
		}
		text = next
	}
}

// Normalize runs the default normalizer over raw.
func Normalize(raw string) string {
	return defaultNormalizer.Run(raw)
}

var defaultNormalizer = NewNormalizer(DefaultRules())
