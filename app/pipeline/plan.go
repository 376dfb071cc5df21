package pipeline

import (
	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/ledger"
)

// SourcePlan is the per-source work selected for one run.
type SourcePlan struct {
	Source     string
	Candidates []Candidate
	// Ledger is the failed-item ledger carried forward, without the entries
	// retried or resolved this run.
	Ledger []ledger.Item
	// Watermark is the newest candidate by published time.
	WatermarkMs  int64
	WatermarkKey string
}

// Cutoff returns the watermark new entries must be newer than: the last item
// publish time, or the last fetch time when no item was ever seen.
func Cutoff(src database.Source) int64 {
	if src.LastItemPubMs > 0 {
		return src.LastItemPubMs
	}
	return src.LastFetchMs
}

// AfterCutoff reports whether an entry published at publishedMs is new.
// Entries without a timestamp are never excluded.
func AfterCutoff(publishedMs, cutoffMs int64) bool {
	return publishedMs <= 0 || cutoffMs <= 0 || publishedMs > cutoffMs
}

// BuildPlan runs the failed-item ledger sweep and then the cutoff filter over
// a freshly fetched entry list.
func BuildPlan(cfg *feed.Config, src database.Source, entries []feed.Entry, seen func(string) bool, retryBudget int, nowMs int64) SourcePlan {
	strategy := cfg.Settings.ItemIDStrategy
	hashAlgo := cfg.Settings.ContentHashAlgo

	keyed := make(map[string]feed.Entry, len(entries))
	keys := make([]string, len(entries))
	for i, entry := range entries {
		key := feed.DeriveKey(entry, strategy, hashAlgo)
		keys[i] = key
		if key == "" {
			continue
		}
		if _, ok := keyed[key]; !ok {
			keyed[key] = entry
		}
	}

	plan := SourcePlan{Source: cfg.Name}
	claimed := make(map[string]struct{})

	present := func(key string) bool {
		_, ok := keyed[key]
		return ok
	}
	sweep := ledger.Plan(ledger.Parse(src.FailedItems), present, seen, retryBudget, nowMs)
	plan.Ledger = sweep.Kept

	for _, key := range sweep.Resolved {
		claimed[key] = struct{}{}
	}
	for i := range sweep.Retry {
		prior := sweep.Retry[i]
		entry := keyed[prior.ItemKey]
		plan.add(Candidate{
			Source:      cfg.Name,
			ItemKey:     prior.ItemKey,
			Entry:       entry,
			PublishedMs: entry.PublishedMs(),
			Origin:      OriginRetried,
			Prior:       &prior,
			Extract:     cfg.Settings.ExtractContent,
		})
		claimed[prior.ItemKey] = struct{}{}
	}

	cutoff := Cutoff(src)
	for i, entry := range entries {
		publishedMs := entry.PublishedMs()
		if !AfterCutoff(publishedMs, cutoff) {
			continue
		}
		key := keys[i]
		if key == "" {
			continue
		}
		if _, ok := claimed[key]; ok {
			continue
		}
		if seen(key) {
			continue
		}
		claimed[key] = struct{}{}
		plan.add(Candidate{
			Source:      cfg.Name,
			ItemKey:     key,
			Entry:       entry,
			PublishedMs: publishedMs,
			Origin:      OriginFresh,
			Extract:     cfg.Settings.ExtractContent,
		})
	}

	return plan
}

func (p *SourcePlan) add(c Candidate) {
	p.Candidates = append(p.Candidates, c)
	if c.PublishedMs > p.WatermarkMs {
		p.WatermarkMs = c.PublishedMs
		p.WatermarkKey = c.ItemKey
	}
}
