// Package ledger keeps the bounded per-source log of items whose scoring
// failed, and decides which of them get another attempt.
package ledger

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

type Item struct {
	ItemKey     string `json:"item_key"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	PublishedMs int64  `json:"published_ms"`
	FailCount   int    `json:"fail_count"`
	LastError   string `json:"last_error"`
	LastSeenMs  int64  `json:"last_seen_ms"`
	MissCount   int    `json:"miss_count"`
}

type Limits struct {
	MaxItems    int
	RetryBudget int
	MaxAge      time.Duration
	MaxMiss     int
}

func DefaultLimits() Limits {
	return Limits{
		MaxItems:    50,
		RetryBudget: 5,
		MaxAge:      7 * 24 * time.Hour,
		MaxMiss:     3,
	}
}

// Parse decodes a serialized ledger. Input that is not a JSON list or object
// yields an empty ledger; inside a list, elements that do not decode as an
// item are skipped one by one. A single JSON object is accepted as a one-item
// ledger. Items without a key are dropped.
func Parse(raw string) []Item {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var elements []json.RawMessage
	if strings.HasPrefix(raw, "{") {
		elements = []json.RawMessage{json.RawMessage(raw)}
	} else if err := json.Unmarshal([]byte(raw), &elements); err != nil {
		return nil
	}

	var items []Item
	for _, element := range elements {
		var item Item
		if err := json.Unmarshal(element, &item); err != nil {
			continue
		}
		item.ItemKey = strings.TrimSpace(item.ItemKey)
		if item.ItemKey == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func Serialize(items []Item) (string, error) {
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Upsert records a failure for key. An existing entry has its fail count
// bumped, its staleness reset and empty descriptive fields back-filled; a new
// key is appended with a fail count of one.
func Upsert(items []Item, key string, publishedMs int64, title, link, reason string, nowMs int64) []Item {
	for i := range items {
		item := &items[i]
		if item.ItemKey != key {
			continue
		}
		item.FailCount++
		if reason != "" {
			item.LastError = reason
		}
		item.LastSeenMs = nowMs
		item.MissCount = 0
		if title != "" && item.Title == "" {
			item.Title = title
		}
		if link != "" && item.Link == "" {
			item.Link = link
		}
		if publishedMs != 0 && item.PublishedMs == 0 {
			item.PublishedMs = publishedMs
		}
		return items
	}

	return append(items, Item{
		ItemKey:     key,
		Title:       title,
		Link:        link,
		PublishedMs: publishedMs,
		FailCount:   1,
		LastError:   reason,
		LastSeenMs:  nowMs,
	})
}

// Prune dedupes by key (most recently seen wins), evicts entries that missed
// too many fetches or aged out, and keeps the newest limits.MaxItems. An entry
// with no last-seen time takes its published time, or nowMs when that is
// missing too, so every survivor satisfies nowMs-LastSeenMs <= MaxAge.
func Prune(items []Item, nowMs int64, limits Limits) []Item {
	latest := make(map[string]Item, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if item.ItemKey == "" {
			continue
		}
		prev, ok := latest[item.ItemKey]
		if !ok {
			order = append(order, item.ItemKey)
		}
		if !ok || item.LastSeenMs >= prev.LastSeenMs {
			latest[item.ItemKey] = item
		}
	}

	maxAgeMs := limits.MaxAge.Milliseconds()
	pruned := make([]Item, 0, len(order))
	for _, key := range order {
		item := latest[key]
		if item.MissCount >= limits.MaxMiss {
			continue
		}
		if item.LastSeenMs == 0 {
			item.LastSeenMs = item.PublishedMs
		}
		if item.LastSeenMs == 0 {
			item.LastSeenMs = nowMs
		}
		if nowMs-item.LastSeenMs > maxAgeMs {
			continue
		}
		pruned = append(pruned, item)
	}

	sort.SliceStable(pruned, func(i, j int) bool {
		return pruned[i].LastSeenMs > pruned[j].LastSeenMs
	})

	if limits.MaxItems >= 0 && len(pruned) > limits.MaxItems {
		pruned = pruned[:limits.MaxItems]
	}
	return pruned
}

// Sweep is the result of matching a ledger against a fresh fetch.
type Sweep struct {
	// Retry holds entries granted another scoring attempt this run.
	Retry []Item
	// Kept is the ledger carried forward, excluding retried and resolved entries.
	Kept []Item
	// Resolved lists keys that already exist in the record store.
	Resolved []string
}

// Plan walks the ledger once per run. Entries absent from the fetched feed age
// by one miss; entries already persisted elsewhere are resolved and dropped;
// the remainder are retried while budget lasts and kept otherwise.
func Plan(items []Item, present, seen func(key string) bool, budget int, nowMs int64) Sweep {
	var sweep Sweep
	for _, item := range items {
		if item.ItemKey == "" {
			continue
		}
		if !present(item.ItemKey) {
			item.MissCount++
			item.LastSeenMs = nowMs
			sweep.Kept = append(sweep.Kept, item)
			continue
		}
		if seen(item.ItemKey) {
			sweep.Resolved = append(sweep.Resolved, item.ItemKey)
			continue
		}
		if budget <= 0 {
			sweep.Kept = append(sweep.Kept, item)
			continue
		}
		budget--
		sweep.Retry = append(sweep.Retry, item)
	}
	return sweep
}
