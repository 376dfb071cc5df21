package oracle

import (
	"fmt"
	"strings"
	"time"
)

const DefaultLanguage = "Simplified Chinese"

const defaultSystemPrompt = `# Role
You are an analyst of AI, technology and business news. You are strictly
rational, you look for information gain and you have zero tolerance for
low-value content. Your readers are AI creators, developers and business
decision makers.

# Protocol
1. Answer with a single JSON object and nothing else. No markdown fences,
   no preamble.
2. Treat the provided article as the only source of truth. Never add facts,
   prices, versions or competitor data that the article does not contain.

# JSON Schema
{
  "categories": ["Tag1", "Tag2"],
  "score": 0.0,
  "title_zh": "headline",
  "one_liner": "what kind of article this is, in one sentence",
  "points": ["point 1", "point 2"]
}

# Scoring (0.0 - 10.0)
- 9.0-10.0: paradigm shift, new architecture or business model.
- 7.5-8.9: usable tools, data-backed reports, concrete tutorials.
- 5.0-7.4: routine updates, repeated news, PR-heavy pieces.
- 0.0-4.9: noise, rumours, opinion without substance.

# Categories (choose 1-3)
AI News, AI Tools, AI Tutorials, Productivity, Tech Trends, Product Thinking,
Creator Economy, Business Cases, Macro Economy, Deep Thinking, Lifestyle,
AI Prompts.

# Extraction
- title_zh: a direct, non-clickbait headline.
- one_liner: at most 30 words describing what the article is.
- points: 2-4 key points, each at most 50 words, "topic: detail".
  For low scores state that the article has no substance.
- Keep every key even when empty ("" or []). Escape quotes inside strings.`

const defaultFeaturedPrompt = `# Role
You advise solo founders and one-person companies who use AI tools to cut
costs, raise output, win traffic and monetize. They do not care about
low-level implementation details.

# Task
From the input items pick the ones most valuable to running a one-person
company.

# Screening
- Keep: reusable workflows, prompt frameworks, automation recipes, new
  traffic or monetization opportunities, practical non-code techniques,
  risks that affect account safety, compliance or cash flow.
- Drop: pure code or architecture debates, corporate M&A and executive
  news, earnings analysis, politics, academic papers, announcements with
  nothing shipped.

# Output Format
{
  "featured_ids": ["record_id_1", "record_id_2"]
}`

type Prompts struct {
	System   string
	Featured string
	Language string
}

func (p Prompts) withDefaults() Prompts {
	if strings.TrimSpace(p.System) == "" {
		p.System = defaultSystemPrompt
	}
	if strings.TrimSpace(p.Featured) == "" {
		p.Featured = defaultFeaturedPrompt
	}
	if strings.TrimSpace(p.Language) == "" {
		p.Language = DefaultLanguage
	}
	return p
}

// Analysis builds the user prompt for one article.
func (p Prompts) Analysis(article Article, now time.Time) string {
	p = p.withDefaults()
	return fmt.Sprintf(`Write title_zh, one_liner and points in %s.

Current date: %s

title: %s
content: %s
`, p.Language, now.Format("2006-01"), article.Title, article.Content)
}

func (p Prompts) featuredPrompt(payload string) string {
	return fmt.Sprintf("%s\n\n# Input\n%s", p.withDefaults().Featured, payload)
}
