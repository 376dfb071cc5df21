// Package oracle scores feed items through an LLM and classifies the answer
// into an accepted analysis or a failure that the caller should retry later.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/rss-triage/app/errkind"
)

// Completer sends one prompt to a language model and returns the raw text
// answer. Errors are classified with errkind.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Failure reasons reported by the oracle itself. A model may also echo one of
// these as a category when it cannot analyze an article.
const (
	ReasonCallFailed  = "call_failed"
	ReasonCallError   = "call_error"
	ReasonParseFailed = "parse_failed"
	ReasonJSONFailed  = "json_parse_failed"
	ReasonError       = "error"
)

var failureCategories = map[string]struct{}{
	ReasonCallFailed:  {},
	ReasonCallError:   {},
	ReasonParseFailed: {},
	ReasonJSONFailed:  {},
	ReasonError:       {},
}

func IsFailureCategory(category string) bool {
	_, ok := failureCategories[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

type Analysis struct {
	Categories []string
	Score      float64
	Title      string
	OneLiner   string
	Points     []string
}

type Verdict int

const (
	Accepted Verdict = iota + 1
	Failed
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the classified outcome of one scoring call. Analysis is only
// meaningful when Verdict is Accepted; Reason and Err only when it is Failed.
type Result struct {
	Verdict  Verdict
	Analysis Analysis
	Reason   string
	Err      error
}

func accepted(a Analysis) Result {
	return Result{Verdict: Accepted, Analysis: a}
}

func failed(reason string, err error) Result {
	return Result{Verdict: Failed, Reason: reason, Err: err}
}

type Article struct {
	Title   string
	Content string
}

type CurationItem struct {
	RecordID string `json:"record_id"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
}

type Oracle struct {
	completer Completer
	prompts   Prompts
	now       func() time.Time
}

func New(completer Completer, prompts Prompts) *Oracle {
	return &Oracle{
		completer: completer,
		prompts:   prompts.withDefaults(),
		now:       time.Now,
	}
}

// Analyze scores one article. It never returns a malformed analysis: any
// transport or decoding problem becomes a Failed result.
func (o *Oracle) Analyze(ctx context.Context, article Article) Result {
	prompt := o.prompts.Analysis(article, o.now())
	text, err := o.completer.Complete(ctx, o.prompts.System, prompt)
	if err != nil {
		return failed(ReasonCallFailed, err)
	}

	analysis, err := ParseAnalysis(text)
	if err != nil {
		return failed(ReasonJSONFailed, errkind.Wrap(errkind.Parse, "oracle", err))
	}

	for _, category := range analysis.Categories {
		if IsFailureCategory(category) {
			return failed(strings.ToLower(strings.TrimSpace(category)),
				errkind.New(errkind.Parse, "oracle", "model reported category "+category))
		}
	}

	return accepted(analysis)
}

// Curate asks the model to pick the most valuable records from items and
// returns the selected record ids, restricted to ids present in items.
func (o *Oracle) Curate(ctx context.Context, items []CurationItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(struct {
		Items []CurationItem `json:"items"`
	}{Items: items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode curation items: %w", err)
	}

	text, err := o.completer.Complete(ctx, "", o.prompts.featuredPrompt(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("curation call failed: %w", err)
	}

	ids, err := ParseFeatured(text)
	if err != nil {
		return nil, errkind.Wrap(errkind.Parse, "curation", err)
	}

	known := make(map[string]struct{}, len(items))
	for _, item := range items {
		known[item.RecordID] = struct{}{}
	}
	selected := ids[:0]
	for _, id := range ids {
		if _, ok := known[id]; ok {
			selected = append(selected, id)
			delete(known, id)
		}
	}
	return selected, nil
}
