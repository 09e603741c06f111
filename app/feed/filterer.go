package feed

import (
	"fmt"
	"slices"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run marks entries that lack a required item or fail a field filter.
func (f *Filterer) Run(entries []Entry, feedConfig *Config) []Entry {
	if len(feedConfig.Settings.RequiredItems) == 0 && len(feedConfig.Filters) == 0 {
		return entries
	}

	filtered := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		isFiltered, filterReason := f.applyRequiredItems(entry, feedConfig.Settings.RequiredItems)
		if !isFiltered {
			isFiltered, filterReason = f.applyFilters(entry, feedConfig.Filters)
		}
		entry.IsFiltered = isFiltered
		entry.FilterReason = filterReason
		filtered = append(filtered, entry)
	}

	return filtered
}

func (f *Filterer) applyRequiredItems(entry Entry, required []string) (bool, string) {
	for _, id := range required {
		if !slices.Contains(entry.ItemCodes, strings.ToLower(id)) {
			return true, fmt.Sprintf("Missing required item %s", id)
		}
	}
	return false, ""
}

func (f *Filterer) applyFilters(entry Entry, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(entry, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(entry Entry, field string) string {
	switch field {
	case "title":
		return entry.Title
	case "company":
		return entry.Company
	case "summary":
		return entry.Summary
	case "link":
		return entry.Link
	case "items":
		return strings.Join(entry.ItemCodes, " ")
	default:
		return ""
	}
}
