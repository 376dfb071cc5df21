package feed

import (
	"strings"
	"testing"
	"time"
)

func sampleEntry() Entry {
	published := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	return Entry{
		GUID:        "urn:uuid:1234",
		Title:       "  Launch day  ",
		Link:        "https://example.com/posts/launch",
		Description: "short summary",
		Content:     "<p>Full body</p>",
		Published:   "Fri, 01 Mar 2024 08:30:00 GMT",
		PublishedAt: &published,
	}
}

func TestDeriveKeyStrategies(t *testing.T) {
	entry := sampleEntry()

	tests := []struct {
		strategy string
		want     string
	}{
		{StrategyGUID, "urn:uuid:1234"},
		{"GUID", "urn:uuid:1234"},
		{StrategyLink, "https://example.com/posts/launch"},
		{StrategyTitlePubdate, "Launch day|Fri, 01 Mar 2024 08:30:00 GMT"},
		{"", "urn:uuid:1234"},
		{"something-else", "urn:uuid:1234"},
	}

	for _, tt := range tests {
		if got := DeriveKey(entry, tt.strategy, ""); got != tt.want {
			t.Errorf("Strategy %q: expected %q, got %q", tt.strategy, tt.want, got)
		}
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	entry := sampleEntry()

	for _, strategy := range []string{StrategyGUID, StrategyLink, StrategyTitlePubdate, StrategyContentHash, ""} {
		first := DeriveKey(entry, strategy, "sha1")
		second := DeriveKey(entry, strategy, "sha1")
		if first != second {
			t.Errorf("Strategy %q: expected deterministic key, got %q and %q", strategy, first, second)
		}
		if first == "" {
			t.Errorf("Strategy %q: expected non-empty key", strategy)
		}
	}
}

func TestDeriveKeyGUIDMissing(t *testing.T) {
	entry := sampleEntry()
	entry.GUID = ""

	if got := DeriveKey(entry, StrategyGUID, ""); got != "" {
		t.Errorf("Expected empty key, got %q", got)
	}
	if got := DeriveKey(entry, "", ""); got != entry.Link {
		t.Errorf("Expected fallback to link, got %q", got)
	}

	entry.Link = ""
	if got := DeriveKey(entry, "", ""); got != "Launch day|Fri, 01 Mar 2024 08:30:00 GMT" {
		t.Errorf("Expected fallback to composite, got %q", got)
	}
}

func TestDeriveKeyTitlePubdateTrimsSeparator(t *testing.T) {
	entry := Entry{Title: "Only title"}
	if got := DeriveKey(entry, StrategyTitlePubdate, ""); got != "Only title" {
		t.Errorf("Expected 'Only title', got %q", got)
	}

	entry = Entry{Updated: "2024-03-01T08:30:00Z"}
	if got := DeriveKey(entry, StrategyTitlePubdate, ""); got != "2024-03-01T08:30:00Z" {
		t.Errorf("Expected updated string, got %q", got)
	}

	if got := DeriveKey(Entry{}, StrategyTitlePubdate, ""); got != "" {
		t.Errorf("Expected empty key, got %q", got)
	}
}

func TestDeriveKeyContentHash(t *testing.T) {
	entry := sampleEntry()

	md5Key := DeriveKey(entry, StrategyContentHash, "")
	if !strings.HasPrefix(md5Key, "md5:") || len(md5Key) != len("md5:")+32 {
		t.Errorf("Expected md5 key by default, got %q", md5Key)
	}

	if got := DeriveKey(entry, StrategyContentHash, "whirlpool"); got != md5Key {
		t.Errorf("Expected unknown algorithm to fall back to md5, got %q", got)
	}

	shaKey := DeriveKey(entry, StrategyContentHash, "SHA256")
	if !strings.HasPrefix(shaKey, "sha256:") || len(shaKey) != len("sha256:")+64 {
		t.Errorf("Expected sha256 key, got %q", shaKey)
	}

	summaryOnly := entry
	summaryOnly.Content = ""
	if DeriveKey(summaryOnly, StrategyContentHash, "") == md5Key {
		t.Errorf("Expected summary body to hash differently from content body")
	}

	empty := Entry{Title: "no body"}
	if got := DeriveKey(empty, StrategyContentHash, ""); got != "" {
		t.Errorf("Expected empty key for empty body, got %q", got)
	}
}

func TestEntryPublishedMs(t *testing.T) {
	entry := sampleEntry()
	if entry.PublishedMs() != entry.PublishedAt.UnixMilli() {
		t.Errorf("Expected published ms %d, got %d", entry.PublishedAt.UnixMilli(), entry.PublishedMs())
	}

	updated := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entry = Entry{UpdatedAt: &updated}
	if entry.PublishedMs() != updated.UnixMilli() {
		t.Errorf("Expected updated ms fallback, got %d", entry.PublishedMs())
	}

	if (Entry{}).PublishedMs() != 0 {
		t.Errorf("Expected 0 for unknown timestamp")
	}
}
