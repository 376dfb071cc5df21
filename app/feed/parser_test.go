package feed

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <language>en-us</language>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <description>Test Item 1 Description</description>
      <content:encoded><![CDATA[<p>Item 1 body</p>]]></content:encoded>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>test@example.com (Test Author)</author>
      <category>Technology</category>
    </item>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>Test Item 2 Description</description>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	metadata, entries, err := parser.Run([]byte(rssData), "example", 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", metadata.Title)
	}
	if metadata.Language != "en-us" {
		t.Errorf("Expected language 'en-us', got: %s", metadata.Language)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(entries))
	}

	first := entries[0]
	if first.GUID != "item-1" {
		t.Errorf("Expected GUID 'item-1', got: %s", first.GUID)
	}
	if first.Published != "Mon, 03 Jul 2023 10:00:00 GMT" {
		t.Errorf("Expected raw published string, got: %s", first.Published)
	}
	if first.PublishedAt == nil || first.PublishedAt.Hour() != 10 {
		t.Errorf("Expected parsed published time at 10:00 UTC, got: %v", first.PublishedAt)
	}
	if first.Content != "<p>Item 1 body</p>" {
		t.Errorf("Expected encoded content, got: %s", first.Content)
	}
	if first.Body() != first.Content {
		t.Errorf("Expected body to prefer content")
	}
	if first.Source != "example" {
		t.Errorf("Expected source 'example', got: %s", first.Source)
	}
	if len(first.Categories) != 1 || first.Categories[0] != "Technology" {
		t.Errorf("Expected category 'Technology', got: %v", first.Categories)
	}

	second := entries[1]
	if second.PublishedAt != nil || second.PublishedMs() != 0 {
		t.Errorf("Expected unknown timestamp for second entry")
	}
	if second.Body() != "Test Item 2 Description" {
		t.Errorf("Expected body to fall back to description, got: %s", second.Body())
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <link href="https://example.com/"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <entry>
    <title>Atom Entry</title>
    <link href="https://example.com/atom-entry"/>
    <id>tag:example.com,2023:entry-1</id>
    <updated>2023-07-03T11:00:00Z</updated>
    <summary>Atom summary</summary>
    <author><name>Jane</name></author>
  </entry>
</feed>`

	parser := NewParser()
	_, entries, err := parser.Run([]byte(atomData), "atom", 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(entries))
	}

	entry := entries[0]
	if entry.GUID != "tag:example.com,2023:entry-1" {
		t.Errorf("Expected atom id as GUID, got: %s", entry.GUID)
	}
	if entry.Updated != "2023-07-03T11:00:00Z" {
		t.Errorf("Expected raw updated string, got: %s", entry.Updated)
	}
	if entry.PublishedMs() == 0 {
		t.Errorf("Expected updated time to be used as published time")
	}
	if len(entry.Authors) != 1 || entry.Authors[0] != "Jane" {
		t.Errorf("Expected author 'Jane', got: %v", entry.Authors)
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()
	if _, _, err := parser.Run([]byte("definitely not a feed"), "bad", 0); err == nil {
		t.Error("Expected error for invalid feed")
	}
}

func TestParseCapsEntries(t *testing.T) {
	var items strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&items, "<item><title>Item %d</title><guid>g-%d</guid></item>", i, i)
	}
	rssData := `<?xml version="1.0"?><rss version="2.0"><channel><title>Many</title>` + items.String() + `</channel></rss>`

	parser := NewParser()
	_, entries, err := parser.Run([]byte(rssData), "many", 3)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got: %d", len(entries))
	}
	if entries[0].GUID != "g-0" || entries[2].GUID != "g-2" {
		t.Errorf("Expected the first entries in document order, got %s..%s", entries[0].GUID, entries[2].GUID)
	}
}

func TestFormatAuthor(t *testing.T) {
	tests := []struct {
		name, email, want string
	}{
		{"Jane", "jane@example.com", "jane@example.com (Jane)"},
		{"Jane", "", "Jane"},
		{"", "jane@example.com", "jane@example.com"},
		{" ", " ", ""},
	}

	for _, tt := range tests {
		if got := formatAuthor(tt.name, tt.email); got != tt.want {
			t.Errorf("formatAuthor(%q, %q): expected %q, got %q", tt.name, tt.email, tt.want, got)
		}
	}
}
