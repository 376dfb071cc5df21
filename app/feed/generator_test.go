package feed

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateDigest(t *testing.T) {
	generator := NewGenerator()
	published := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

	channel := Channel{
		Title:       "Triage digest",
		Link:        "https://triage.example.com",
		Description: "Accepted items",
		SelfLink:    "https://triage.example.com/feed.xml?featured=true&x=1",
		Generator:   "rss-triage/dev",
	}
	items := []DigestItem{
		{
			GUID:        "https://example.com/a",
			Title:       "Tom & Jerry <3",
			Link:        "https://example.com/a",
			Summary:     "One liner\n- point",
			Content:     "<p>body ]]> tail</p>",
			Source:      "hn",
			PublishedAt: published,
			Categories:  []string{"AI", "Go"},
		},
		{
			GUID:  "opaque-key",
			Title: "Second",
		},
	}

	rss, err := generator.Run(channel, items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	checks := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		"<title>Triage digest</title>",
		`href="https://triage.example.com/feed.xml?featured=true&amp;x=1"`,
		"<lastBuildDate>" + published.Format(time.RFC1123Z) + "</lastBuildDate>",
		"<generator>rss-triage/dev</generator>",
		`<guid isPermaLink="true">https://example.com/a</guid>`,
		`<guid isPermaLink="false">opaque-key</guid>`,
		"<title>Tom &amp; Jerry &lt;3</title>",
		"<category>AI</category>",
		"<source>hn</source>",
		"<description>No summary available</description>",
		"]]]]><![CDATA[>",
	}
	for _, want := range checks {
		if !strings.Contains(rss, want) {
			t.Errorf("Expected RSS to contain %q", want)
		}
	}

	if strings.Count(rss, "<item>") != 2 {
		t.Errorf("Expected 2 items, got %d", strings.Count(rss, "<item>"))
	}
}

func TestGenerateDigestEmpty(t *testing.T) {
	generator := NewGenerator()

	rss, err := generator.Run(Channel{Title: "Empty"}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if strings.Contains(rss, "<item>") {
		t.Error("Expected no items")
	}
	if strings.Contains(rss, "atom:link") {
		t.Error("Expected no self link when none configured")
	}
	if !strings.Contains(rss, "<lastBuildDate>") {
		t.Error("Expected lastBuildDate to be present")
	}
}

func TestIsURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com": true,
		"http://example.com":  true,
		"ftp://example.com":   false,
		"md5:abc":             false,
		"":                    false,
	}

	for input, want := range tests {
		if got := isURL(input); got != want {
			t.Errorf("isURL(%q): expected %v, got %v", input, want, got)
		}
	}
}
