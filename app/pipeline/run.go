package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/errkind"
	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/ledger"
	"github.com/lysyi3m/rss-triage/app/notify"
	"github.com/lysyi3m/rss-triage/app/oracle"
)

const (
	reasonStoreFailed = "store_failed"
	reasonPanic       = "error"
)

type Deps struct {
	Configs   ConfigProvider
	Sources   database.SourceRepository
	Records   database.RecordRepository
	Fetcher   Fetcher
	Filter    Filter
	Extractor Extractor
	Scorer    Scorer
	Curator   Curator
	Dedup     *DedupGate
	Sinks     []notify.Sink
}

type Pipeline struct {
	deps     Deps
	settings Settings
	scoring  *ScoringGate
	now      func() time.Time
	progress ProgressFunc

	mu   sync.Mutex
	last *Stats
}

func New(deps Deps, settings Settings) *Pipeline {
	return &Pipeline{
		deps:     deps,
		settings: settings,
		scoring:  NewScoringGate(deps.Scorer, settings.PublishThreshold),
		now:      time.Now,
	}
}

func (p *Pipeline) SetProgress(progress ProgressFunc) {
	p.progress = progress
}

// LastStats returns the summary of the most recent completed run.
func (p *Pipeline) LastStats() (Stats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Stats{}, false
	}
	return *p.last, true
}

// run is the state scoped to one pipeline run. Everything below mu is shared
// between queue workers and only touched while holding it.
type run struct {
	notifier *notify.RunNotifier
	nowMs    int64

	mu       sync.Mutex
	seen     map[string]struct{}
	inflight map[string]struct{}
	failed   map[string]struct{}
	ledgers  map[string][]ledger.Item
	curation []oracle.CurationItem
	stats    Stats
}

func (r *run) isSeen(key string) bool {
	_, ok := r.seen[key]
	return ok
}

func (p *Pipeline) validate() error {
	var missing []string
	if p.deps.Configs == nil {
		missing = append(missing, "source configs")
	}
	if p.deps.Sources == nil || p.deps.Records == nil {
		missing = append(missing, "store")
	}
	if p.deps.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if p.deps.Scorer == nil {
		missing = append(missing, "scorer")
	}
	if len(missing) > 0 {
		return errkind.New(errkind.Config, "pipeline", fmt.Sprintf("missing: %v", missing))
	}
	return nil
}

// Run executes one ingestion pass over every configured source. Only
// configuration problems fail the run; source and item failures are counted.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	r := &run{
		notifier: notify.NewRunNotifier(p.deps.Sinks...),
		nowMs:    p.now().UnixMilli(),
		seen:     make(map[string]struct{}),
		inflight: make(map[string]struct{}),
		failed:   make(map[string]struct{}),
		ledgers:  make(map[string][]ledger.Item),
	}
	r.stats.StartedAt = p.now()

	if err := p.validate(); err != nil {
		r.notifier.NotifyError(ctx, "", err)
		return r.stats, err
	}

	p.prefetchSeen(ctx, r)

	plans, sources := p.planSources(ctx, r)

	var candidates []Candidate
	for _, plan := range plans {
		r.ledgers[plan.Source] = plan.Ledger
		candidates = append(candidates, plan.Candidates...)
	}
	r.stats.Queued = len(candidates)
	slog.Info("Scoring queue built",
		"queued", r.stats.Queued,
		"sources_processed", r.stats.SourcesProcessed,
		"sources_skipped", r.stats.SourcesSkipped)

	queue := NewQueue(p.settings.Workers)
	queue.OnProgress = p.progress
	queue.OnPanic = func(c Candidate, recovered any) Outcome {
		p.recordFailure(r, c, reasonPanic)
		return OutcomeFailed
	}
	queue.Run(ctx, candidates, func(ctx context.Context, c Candidate) Outcome {
		return p.handle(ctx, r, c)
	})

	for _, plan := range plans {
		p.reconcile(ctx, r, sources[plan.Source], plan)
	}

	p.curate(ctx, r)

	r.stats.FinishedAt = p.now()
	stats := r.stats

	p.mu.Lock()
	p.last = &stats
	p.mu.Unlock()

	slog.Info("Run completed",
		"sources_processed", stats.SourcesProcessed,
		"sources_skipped", stats.SourcesSkipped,
		"sources_failed", stats.SourcesFailed,
		"entries_fetched", stats.EntriesFetched,
		"queued", stats.Queued,
		"new", stats.New,
		"scored_ok", stats.ScoredOK,
		"scored_failed", stats.ScoredFailed,
		"store_failed", stats.StoreFailed,
		"dedup_skipped", stats.DedupSkipped,
		"duration", stats.FinishedAt.Sub(stats.StartedAt))

	return stats, nil
}

func (p *Pipeline) prefetchSeen(ctx context.Context, r *run) {
	keys, err := p.deps.Records.RecentItemKeys(ctx, p.settings.SeenPrefetch)
	if err != nil {
		slog.Warn("Failed to prefetch recent item keys", "error", err)
		return
	}
	for _, key := range keys {
		r.seen[key] = struct{}{}
	}
	slog.Debug("Prefetched recent item keys", "count", len(r.seen))
}

func (p *Pipeline) planSources(ctx context.Context, r *run) ([]SourcePlan, map[string]database.Source) {
	var plans []SourcePlan
	sources := make(map[string]database.Source)
	interval := p.settings.FetchInterval.Milliseconds()

	for _, cfg := range p.deps.Configs.GetConfigs() {
		if cfg.URL == "" {
			r.stats.SourcesSkipped++
			continue
		}

		src, err := p.loadSource(ctx, cfg)
		if err != nil {
			slog.Error("Failed to load source state", "feed", cfg.Name, "error", err)
			r.stats.SourcesSkipped++
			continue
		}

		if !cfg.Settings.Enabled {
			if err := p.deps.Sources.UpdateSourceState(ctx, cfg.Name, IdleUpdate()); err != nil {
				slog.Error("Failed to mark source idle", "feed", cfg.Name, "error", err)
			}
			r.stats.SourcesSkipped++
			continue
		}

		if !ShouldFetch(*src, r.nowMs, interval) {
			r.stats.SourcesSkipped++
			continue
		}

		slog.Info("Fetching feed", "feed", cfg.Name, "url", cfg.URL)
		entries, err := p.deps.Fetcher.Fetch(ctx, cfg, p.settings.MaxEntries)
		if err != nil {
			slog.Warn("Feed fetch failed", "feed", cfg.Name, "status", FetchStatus(err), "error", err)
			if uerr := p.deps.Sources.UpdateSourceState(ctx, cfg.Name, FetchFailureUpdate(*src, err, r.nowMs)); uerr != nil {
				slog.Error("Failed to record fetch failure", "feed", cfg.Name, "error", uerr)
			}
			r.stats.SourcesFailed++
			r.stats.SourcesSkipped++
			continue
		}
		r.stats.EntriesFetched += len(entries)

		if p.deps.Filter != nil {
			entries = p.deps.Filter.Run(entries, cfg)
		}

		plan := BuildPlan(cfg, *src, entries, r.isSeen, p.settings.Ledger.RetryBudget, r.nowMs)
		slog.Info("Feed planned",
			"feed", cfg.Name,
			"entries", len(entries),
			"candidates", len(plan.Candidates),
			"ledger", len(plan.Ledger))

		plans = append(plans, plan)
		sources[cfg.Name] = *src
		r.stats.SourcesProcessed++
	}

	return plans, sources
}

func (p *Pipeline) loadSource(ctx context.Context, cfg *feed.Config) (*database.Source, error) {
	src, err := p.deps.Sources.GetSource(ctx, cfg.Name)
	if err != nil {
		return nil, err
	}
	if src != nil {
		return src, nil
	}

	if err := p.deps.Sources.UpsertSource(ctx, SourceConfigFrom(cfg)); err != nil {
		return nil, err
	}
	src, err = p.deps.Sources.GetSource(ctx, cfg.Name)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("source missing after upsert")
	}
	return src, nil
}

// SourceConfigFrom maps a YAML source definition onto its stored columns.
func SourceConfigFrom(cfg *feed.Config) database.SourceConfig {
	return database.SourceConfig{
		Name:            cfg.Name,
		Title:           cfg.Title,
		FeedURL:         cfg.URL,
		Enabled:         cfg.Settings.Enabled,
		ItemIDStrategy:  cfg.Settings.ItemIDStrategy,
		ContentHashAlgo: cfg.Settings.ContentHashAlgo,
	}
}

// handle runs one candidate through scoring, dedup and persistence. Network
// calls happen outside r.mu; each item's shared-state effects are applied in
// a single critical section.
func (p *Pipeline) handle(ctx context.Context, r *run, c Candidate) Outcome {
	r.mu.Lock()
	_, busy := r.inflight[c.ItemKey]
	if busy || r.isSeen(c.ItemKey) {
		r.stats.ExactDuplicates++
		// Another source owns the attempt. A retried entry stays in this
		// source's ledger unless the owner already stored the item.
		_, failed := r.failed[c.ItemKey]
		if c.Prior != nil && (busy || failed) {
			r.ledgers[c.Source] = withPrior(r.ledgers[c.Source], *c.Prior)
		}
		r.mu.Unlock()
		return OutcomeDuplicate
	}
	r.inflight[c.ItemKey] = struct{}{}
	r.mu.Unlock()

	content := p.articleContent(ctx, c)
	if p.settings.MaxContentRunes > 0 {
		content = feed.Truncate(content, p.settings.MaxContentRunes)
	}
	decision := p.scoring.Score(ctx, oracle.Article{Title: c.Entry.Title, Content: content})

	switch decision.Verdict {
	case ScoreFailed:
		slog.Warn("Scoring failed",
			"source", c.Source,
			"item_key", c.ItemKey,
			"origin", c.Origin,
			"reason", decision.Result.Reason,
			"error", decision.Result.Err)
		p.notifyScoringFailure(ctx, r, decision.Result)
		p.recordFailure(r, c, decision.Result.Reason)
		return OutcomeFailed

	case ScoreLow:
		r.mu.Lock()
		r.stats.ScoredOK++
		r.stats.LowScore++
		p.markSeen(r, c.ItemKey)
		r.mu.Unlock()
		return OutcomeLowScore
	}

	analysis := decision.Result.Analysis
	dedup := p.deps.Dedup.Check(ctx, EmbeddingText(analysis, c.Entry))
	p.notifyClassified(ctx, r, dedup.Err)
	if dedup.Skip {
		slog.Info("Skipping near-duplicate", "source", c.Source, "title", c.Entry.Title, "similarity", dedup.Similarity)
		r.mu.Lock()
		r.stats.ScoredOK++
		r.stats.DedupSkipped++
		p.markSeen(r, c.ItemKey)
		r.mu.Unlock()
		return OutcomeDuplicate
	}

	now := p.now()
	record := buildRecord(c, analysis, feed.HTMLToText(c.Entry.Body()), now)
	id, err := p.deps.Records.CreateRecord(ctx, record)
	if err != nil {
		slog.Error("Failed to persist record", "source", c.Source, "item_key", c.ItemKey, "error", err)
		r.mu.Lock()
		r.stats.ScoredOK++
		r.stats.StoreFailed++
		r.ledgers[c.Source] = p.upsertLedger(r.ledgers[c.Source], c, reasonStoreFailed, r.nowMs)
		r.failed[c.ItemKey] = struct{}{}
		p.markSeen(r, c.ItemKey)
		r.mu.Unlock()
		return OutcomeFailed
	}

	err = p.deps.Dedup.Remember(ctx, c.ItemKey, dedup.Embedding, map[string]any{
		"title":     record.Title,
		"source":    record.Source,
		"published": record.PublishedMs,
	})
	p.notifyClassified(ctx, r, err)

	r.mu.Lock()
	r.stats.ScoredOK++
	r.stats.New++
	r.curation = append(r.curation, oracle.CurationItem{
		RecordID: id,
		Title:    record.Title,
		Summary:  record.Summary,
	})
	p.markSeen(r, c.ItemKey)
	r.mu.Unlock()

	return OutcomePersisted
}

func (p *Pipeline) articleContent(ctx context.Context, c Candidate) string {
	if c.Extract && p.deps.Extractor != nil && c.Entry.Link != "" {
		text, err := p.deps.Extractor.Extract(ctx, c.Entry.Link)
		if err == nil && text != "" {
			return text
		}
		slog.Debug("Content extraction failed, using feed body", "link", c.Entry.Link, "error", err)
	}
	return feed.HTMLToText(c.Entry.Body())
}

// markSeen must be called with r.mu held.
func (p *Pipeline) markSeen(r *run, key string) {
	r.seen[key] = struct{}{}
	delete(r.inflight, key)
}

func (p *Pipeline) recordFailure(r *run, c Candidate, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.ScoredFailed++
	r.ledgers[c.Source] = p.upsertLedger(r.ledgers[c.Source], c, reason, r.nowMs)
	r.failed[c.ItemKey] = struct{}{}
	p.markSeen(r, c.ItemKey)
}

// upsertLedger re-seeds a retried item's prior entry so its fail count keeps
// growing across runs.
func (p *Pipeline) upsertLedger(items []ledger.Item, c Candidate, reason string, nowMs int64) []ledger.Item {
	if c.Prior != nil {
		items = withPrior(items, *c.Prior)
	}
	return ledger.Upsert(items, c.ItemKey, c.PublishedMs, c.Entry.Title, c.Entry.Link, reason, nowMs)
}

func withPrior(items []ledger.Item, prior ledger.Item) []ledger.Item {
	for _, item := range items {
		if item.ItemKey == prior.ItemKey {
			return items
		}
	}
	return append(items, prior)
}

func (p *Pipeline) notifyScoringFailure(ctx context.Context, r *run, result oracle.Result) {
	p.notifyClassified(ctx, r, result.Err)
}

// notifyClassified reports err to the run notifier when it carries a
// root-cause kind. Unclassified and plain HTTP errors are only logged.
func (p *Pipeline) notifyClassified(ctx context.Context, r *run, err error) {
	if err == nil {
		return
	}
	kind := errkind.KindOf(err)
	if kind == errkind.Unknown || kind == errkind.HTTP {
		return
	}
	r.notifier.NotifyError(ctx, "", err)
}

func (p *Pipeline) reconcile(ctx context.Context, r *run, src database.Source, plan SourcePlan) {
	r.mu.Lock()
	items := r.ledgers[plan.Source]
	r.mu.Unlock()

	update, err := SuccessUpdate(src, plan, items, p.settings.Ledger, r.nowMs)
	if err != nil {
		slog.Error("Failed to serialize failed items", "feed", plan.Source, "error", err)
		return
	}
	if err := p.deps.Sources.UpdateSourceState(ctx, plan.Source, update); err != nil {
		slog.Error("Failed to update source state", "feed", plan.Source, "error", err)
	}
}

func (p *Pipeline) curate(ctx context.Context, r *run) {
	if !p.settings.Curate || p.deps.Curator == nil || len(r.curation) == 0 {
		return
	}

	ids, err := p.deps.Curator.Curate(ctx, r.curation)
	if err != nil {
		slog.Warn("Featured curation failed", "error", err)
		r.notifier.NotifyError(ctx, "curation", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	if err := p.deps.Records.SetFeatured(ctx, ids, true); err != nil {
		slog.Error("Failed to mark featured records", "error", err)
		return
	}
	r.stats.Featured = len(ids)
	slog.Info("Featured records selected", "count", len(ids))
}
