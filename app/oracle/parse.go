package oracle

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	thinkBlockRegex = regexp.MustCompile(`(?is)<think>.*?</think>`)
	codeFenceRegex  = regexp.MustCompile("(?i)```(?:json)?")
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

var errEmptyJSON = errors.New("empty json")

// ExtractJSONObject strips reasoning blocks and code fences from a model
// answer and returns the span between the first '{' and the last '}'.
func ExtractJSONObject(text string) string {
	t := thinkBlockRegex.ReplaceAllString(text, "")
	t = codeFenceRegex.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)

	first := strings.Index(t, "{")
	last := strings.LastIndex(t, "}")
	if first != -1 && last > first {
		return t[first : last+1]
	}
	return t
}

type rawAnalysis struct {
	Categories []string        `json:"categories"`
	Score      json.RawMessage `json:"score"`
	TitleZh    string          `json:"title_zh"`
	Title      string          `json:"title"`
	OneLiner   string          `json:"one_liner"`
	Points     []string        `json:"points"`
}

// ParseAnalysis decodes a model answer into an Analysis. Missing or
// unparsable scores become 0; scores are clamped to [0, 10].
func ParseAnalysis(text string) (Analysis, error) {
	payload := ExtractJSONObject(text)
	if payload == "" {
		return Analysis{}, errEmptyJSON
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Analysis{}, err
	}

	title := strings.TrimSpace(raw.TitleZh)
	if title == "" {
		title = strings.TrimSpace(raw.Title)
	}

	categories := make([]string, 0, len(raw.Categories))
	for _, c := range raw.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}

	return Analysis{
		Categories: categories,
		Score:      parseScore(raw.Score),
		Title:      title,
		OneLiner:   strings.TrimSpace(raw.OneLiner),
		Points:     NormalizePoints(raw.Points),
	}, nil
}

func parseScore(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		score, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
	}

	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return math.Min(score, 10)
}

// NormalizePoints collapses whitespace inside each bullet and drops empty ones.
func NormalizePoints(points []string) []string {
	normalized := make([]string, 0, len(points))
	for _, p := range points {
		p = strings.TrimSpace(whitespaceRegex.ReplaceAllString(p, " "))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return normalized
}

// ParseFeatured decodes the curation answer and returns its non-empty ids.
func ParseFeatured(text string) ([]string, error) {
	payload := ExtractJSONObject(text)
	if payload == "" {
		return nil, errEmptyJSON
	}

	var raw struct {
		FeaturedIDs []any `json:"featured_ids"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(raw.FeaturedIDs))
	for _, v := range raw.FeaturedIDs {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			ids = append(ids, s)
		}
	}
	return ids, nil
}
