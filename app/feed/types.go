package feed

import (
	"time"
)

// Feed processing types

type Metadata struct {
	Title         string
	Link          string
	FeedUpdatedAt *time.Time
}

// Entry is one filing announcement from an EDGAR feed.
type Entry struct {
	GUID            string
	Title           string // "8-K - Acme Corp (0000000001) (Filer)"
	Company         string
	Link            string // filing index page
	Summary         string
	AccessionNumber string
	ItemCodes       []string // item ids listed in the summary, lower-cased
	FormType        string
	PublishedAt     time.Time
	UpdatedAt       *time.Time

	IsFiltered   bool
	FilterReason string
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool     `yaml:"enabled"`
	RefreshInterval int      `yaml:"refresh_interval"` // seconds
	MaxItems        int      `yaml:"max_items"`
	Timeout         int      `yaml:"timeout"`        // seconds
	RequiredItems   []string `yaml:"required_items"` // every id must be listed by the entry
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
