package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/ledger"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func noneSeen(string) bool { return false }

func keys(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.ItemKey
	}
	return out
}

func serializedLedger(t *testing.T, items ...ledger.Item) string {
	t.Helper()
	raw, err := ledger.Serialize(items)
	require.NoError(t, err)
	return raw
}

func TestCutoff(t *testing.T) {
	assert.Equal(t, int64(200), Cutoff(database.Source{LastItemPubMs: 200, LastFetchMs: 300}))
	assert.Equal(t, int64(300), Cutoff(database.Source{LastFetchMs: 300}))
	assert.Equal(t, int64(0), Cutoff(database.Source{}))
}

func TestAfterCutoff(t *testing.T) {
	assert.True(t, AfterCutoff(101, 100))
	assert.False(t, AfterCutoff(100, 100))
	assert.False(t, AfterCutoff(99, 100))
	assert.True(t, AfterCutoff(0, 100), "unknown timestamps are never excluded")
	assert.True(t, AfterCutoff(50, 0), "no cutoff admits everything")
}

func TestBuildPlanCutoffAndIdentity(t *testing.T) {
	cfg := sourceConfig("tech")
	cutoff := base
	src := database.Source{Name: "tech", LastItemPubMs: cutoff.UnixMilli()}

	entries := []feed.Entry{
		entryAt("older", "Older", cutoff.Add(-time.Hour)),
		entryAt("equal", "Equal", cutoff),
		entryAt("newer", "Newer", cutoff.Add(time.Hour)),
		entryAt("undated", "Undated", time.Time{}),
		entryAt("newer", "Newer again", cutoff.Add(2*time.Hour)),
		entryAt("known", "Known", cutoff.Add(3*time.Hour)),
		{Title: "No identity", Content: "x"},
	}

	seen := func(key string) bool { return key == "known" }
	plan := BuildPlan(cfg, src, entries, seen, 5, base.UnixMilli())

	assert.Equal(t, []string{"newer", "undated"}, keys(plan.Candidates))
	for _, c := range plan.Candidates {
		assert.Equal(t, OriginFresh, c.Origin)
		assert.Nil(t, c.Prior)
		assert.Equal(t, "tech", c.Source)
	}
	assert.Equal(t, cutoff.Add(time.Hour).UnixMilli(), plan.WatermarkMs)
	assert.Equal(t, "newer", plan.WatermarkKey)
}

func TestBuildPlanNeverRetainsOlderOrEqual(t *testing.T) {
	cfg := sourceConfig("tech")
	src := database.Source{LastItemPubMs: base.UnixMilli()}

	var entries []feed.Entry
	for i := -5; i <= 5; i++ {
		entries = append(entries, entryAt(string(rune('a'+i+5)), "t", base.Add(time.Duration(i)*time.Minute)))
	}

	plan := BuildPlan(cfg, src, entries, noneSeen, 5, base.UnixMilli())
	require.Len(t, plan.Candidates, 5)
	for _, c := range plan.Candidates {
		assert.Greater(t, c.PublishedMs, base.UnixMilli())
	}
}

func TestBuildPlanZeroTimestampsDegradesToIdentity(t *testing.T) {
	cfg := sourceConfig("tech")
	src := database.Source{LastItemPubMs: base.UnixMilli()}
	entries := []feed.Entry{entryAt("a", "A", time.Time{}), entryAt("b", "B", time.Time{})}

	plan := BuildPlan(cfg, src, entries, func(k string) bool { return k == "a" }, 5, base.UnixMilli())

	assert.Equal(t, []string{"b"}, keys(plan.Candidates))
	assert.Zero(t, plan.WatermarkMs)
	assert.Empty(t, plan.WatermarkKey)
}

func TestBuildPlanLedgerSweep(t *testing.T) {
	cfg := sourceConfig("tech")
	nowMs := base.UnixMilli()
	src := database.Source{
		LastItemPubMs: base.Add(time.Hour).UnixMilli(),
		FailedItems: serializedLedger(t,
			ledger.Item{ItemKey: "retry-me", FailCount: 2, LastSeenMs: nowMs - 1000},
			ledger.Item{ItemKey: "gone", FailCount: 1, LastSeenMs: nowMs - 1000, MissCount: 1},
			ledger.Item{ItemKey: "stored", FailCount: 1, LastSeenMs: nowMs - 1000},
			ledger.Item{ItemKey: "over-budget", FailCount: 1, LastSeenMs: nowMs - 1000},
		),
	}
	entries := []feed.Entry{
		entryAt("retry-me", "Retry me", base),
		entryAt("stored", "Stored", base),
		entryAt("over-budget", "Over budget", base),
	}

	plan := BuildPlan(cfg, src, entries, func(k string) bool { return k == "stored" }, 1, nowMs)

	require.Equal(t, []string{"retry-me"}, keys(plan.Candidates))
	retried := plan.Candidates[0]
	assert.Equal(t, OriginRetried, retried.Origin)
	require.NotNil(t, retried.Prior)
	assert.Equal(t, 2, retried.Prior.FailCount)
	assert.Equal(t, "Retry me", retried.Entry.Title)
	assert.Equal(t, base.UnixMilli(), retried.PublishedMs)

	kept := map[string]ledger.Item{}
	for _, item := range plan.Ledger {
		kept[item.ItemKey] = item
	}
	require.Len(t, kept, 2)
	assert.Equal(t, 2, kept["gone"].MissCount)
	assert.Equal(t, nowMs, kept["gone"].LastSeenMs)
	assert.Equal(t, 0, kept["over-budget"].MissCount)
	assert.NotContains(t, kept, "stored")
	assert.NotContains(t, kept, "retry-me")

	assert.Equal(t, base.UnixMilli(), plan.WatermarkMs, "retried candidates count toward the watermark")
}

func TestBuildPlanRetriedKeyIsNotQueuedTwice(t *testing.T) {
	cfg := sourceConfig("tech")
	src := database.Source{FailedItems: serializedLedger(t, ledger.Item{ItemKey: "a", FailCount: 1, LastSeenMs: base.UnixMilli()})}
	entries := []feed.Entry{entryAt("a", "A", base.Add(time.Hour))}

	plan := BuildPlan(cfg, src, entries, noneSeen, 5, base.UnixMilli())

	require.Len(t, plan.Candidates, 1)
	assert.Equal(t, OriginRetried, plan.Candidates[0].Origin)
}

func TestBuildPlanCarriesExtractSetting(t *testing.T) {
	cfg := sourceConfig("tech")
	cfg.Settings.ExtractContent = true

	plan := BuildPlan(cfg, database.Source{}, []feed.Entry{entryAt("a", "A", base)}, noneSeen, 5, base.UnixMilli())

	require.Len(t, plan.Candidates, 1)
	assert.True(t, plan.Candidates[0].Extract)
}
