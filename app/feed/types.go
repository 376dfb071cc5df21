package feed

import (
	"time"
)

// Feed processing types

// Entry is one item of a fetched feed. Published and Updated hold the raw
// date strings as they appeared in the document.
type Entry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Content     string
	Published   string
	Updated     string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
	Authors     []string
	Categories  []string
	Source      string
}

// Body returns the entry's main text: the full content when present,
// otherwise the summary.
func (e Entry) Body() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Description
}

// PublishedMs returns the publish time (or update time) in unix
// milliseconds, or 0 when the feed carried no parsable timestamp.
func (e Entry) PublishedMs() int64 {
	switch {
	case e.PublishedAt != nil:
		return e.PublishedAt.UnixMilli()
	case e.UpdatedAt != nil:
		return e.UpdatedAt.UnixMilli()
	default:
		return 0
	}
}

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Title    string         `yaml:"title"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool   `yaml:"enabled"`
	ItemIDStrategy  string `yaml:"item_id_strategy"`
	ContentHashAlgo string `yaml:"content_hash_algo"`
	MaxItems        int    `yaml:"max_items"`
	Timeout         int    `yaml:"timeout"`         // seconds
	ExtractContent  bool   `yaml:"extract_content"` // fetch linked page before scoring
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
