package feed

import (
	"log/slog"
	"strings"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run drops entries rejected by the source's filters and returns the kept
// entries in their original order.
func (f *Filterer) Run(entries []Entry, feedConfig *Config) []Entry {
	if len(feedConfig.Filters) == 0 {
		return entries
	}

	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if reason := f.rejectReason(entry, feedConfig.Filters); reason != "" {
			slog.Debug("Entry filtered", "feed", feedConfig.Name, "title", entry.Title, "reason", reason)
			continue
		}
		kept = append(kept, entry)
	}

	return kept
}

func (f *Filterer) rejectReason(entry Entry, filters []ConfigFilter) string {
	for _, filter := range filters {
		value := strings.ToLower(f.fieldValue(entry, filter.Field))

		for _, exclude := range filter.Excludes {
			if strings.Contains(value, strings.ToLower(exclude)) {
				return filter.Field + " contains '" + exclude + "'"
			}
		}

		if len(filter.Includes) == 0 {
			continue
		}
		matched := false
		for _, include := range filter.Includes {
			if strings.Contains(value, strings.ToLower(include)) {
				matched = true
				break
			}
		}
		if !matched {
			return filter.Field + " matches no include rule"
		}
	}

	return ""
}

func (f *Filterer) fieldValue(entry Entry, field string) string {
	switch field {
	case "title":
		return entry.Title
	case "description":
		return entry.Description
	case "content":
		return entry.Body()
	case "authors":
		return strings.Join(entry.Authors, " ")
	case "link":
		return entry.Link
	case "categories":
		return strings.Join(entry.Categories, " ")
	default:
		return ""
	}
}
