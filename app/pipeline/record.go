package pipeline

import (
	"strings"
	"time"

	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/oracle"
)

const untitled = "(untitled)"

// BuildSummary renders the one-liner followed by "- " bullets.
func BuildSummary(oneLiner string, points []string) string {
	oneLiner = strings.TrimSpace(oneLiner)
	lines := make([]string, 0, len(points))
	for _, p := range oracle.NormalizePoints(points) {
		lines = append(lines, "- "+p)
	}
	bullets := strings.Join(lines, "\n")

	switch {
	case oneLiner != "" && bullets != "":
		return oneLiner + "\n" + bullets
	case oneLiner != "":
		return oneLiner
	default:
		return bullets
	}
}

func displayTitle(analysis oracle.Analysis, entry feed.Entry) string {
	if t := strings.TrimSpace(analysis.Title); t != "" {
		return t
	}
	if t := strings.TrimSpace(entry.Title); t != "" {
		return t
	}
	return untitled
}

// EmbeddingText is the text compared for near-duplicates: title and summary.
func EmbeddingText(analysis oracle.Analysis, entry feed.Entry) string {
	title := strings.TrimSpace(analysis.Title)
	if title == "" {
		title = strings.TrimSpace(entry.Title)
	}
	summary := BuildSummary(analysis.OneLiner, analysis.Points)
	if summary == "" {
		return title
	}
	return strings.TrimSpace(title + "\n" + summary)
}

func buildRecord(c Candidate, analysis oracle.Analysis, content string, now time.Time) database.Record {
	publishedMs := c.PublishedMs
	if publishedMs <= 0 {
		publishedMs = now.UnixMilli()
	}
	return database.Record{
		ItemKey:       c.ItemKey,
		Source:        c.Source,
		Title:         displayTitle(analysis, c.Entry),
		OriginalTitle: c.Entry.Title,
		Link:          c.Entry.Link,
		Score:         analysis.Score,
		Categories:    analysis.Categories,
		Summary:       BuildSummary(analysis.OneLiner, analysis.Points),
		Content:       content,
		PublishedMs:   publishedMs,
	}
}
