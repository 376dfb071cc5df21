package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// HTMLToText strips markup from an HTML fragment and returns plain text with
// one line per block element. Input that fails to parse is returned trimmed.
func HTMLToText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return CollapseLines(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CollapseLines(fragment)
	}

	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, blockquote, pre, tr").AppendHtml("\n")

	return CollapseLines(doc.Text())
}

// CollapseLines NFC-normalises s, squeezes runs of whitespace inside each
// line and drops empty lines.
func CollapseLines(s string) string {
	s = norm.NFC.String(s)
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
