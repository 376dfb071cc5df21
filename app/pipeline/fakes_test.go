package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/oracle"
	"github.com/lysyi3m/rss-triage/app/vector"
)

func entryAt(guid, title string, published time.Time) feed.Entry {
	e := feed.Entry{GUID: guid, Title: title, Link: "https://example.com/" + guid, Content: "<p>" + title + " body</p>"}
	if !published.IsZero() {
		p := published.UTC()
		e.PublishedAt = &p
		e.Published = p.Format(time.RFC1123Z)
	}
	return e
}

type staticConfigs []*feed.Config

func (s staticConfigs) GetConfigs() []*feed.Config { return s }

func sourceConfig(name string) *feed.Config {
	return &feed.Config{
		Name:  name,
		URL:   "https://example.com/" + name + ".xml",
		Title: name,
		Settings: feed.ConfigSettings{
			Enabled:        true,
			ItemIDStrategy: feed.StrategyGUID,
		},
	}
}

type memSources struct {
	mu      sync.Mutex
	sources map[string]*database.Source
	updates map[string]int
}

func newMemSources() *memSources {
	return &memSources{sources: map[string]*database.Source{}, updates: map[string]int{}}
}

func (m *memSources) GetSource(ctx context.Context, name string) (*database.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[name]
	if !ok {
		return nil, nil
	}
	cp := *src
	return &cp, nil
}

func (m *memSources) ListSources(ctx context.Context) ([]database.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Source
	for _, src := range m.sources {
		out = append(out, *src)
	}
	return out, nil
}

func (m *memSources) GetSourceCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources), nil
}

func (m *memSources) UpsertSource(ctx context.Context, cfg database.SourceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[cfg.Name]
	if !ok {
		src = &database.Source{Name: cfg.Name, Status: StatusOK, FailedItems: "[]"}
		m.sources[cfg.Name] = src
	}
	src.Title = cfg.Title
	src.FeedURL = cfg.FeedURL
	src.Enabled = cfg.Enabled
	src.ItemIDStrategy = cfg.ItemIDStrategy
	src.ContentHashAlgo = cfg.ContentHashAlgo
	return nil
}

func (m *memSources) UpdateSourceState(ctx context.Context, name string, u database.SourceUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.sources[name]
	if !ok {
		return fmt.Errorf("source %s not found", name)
	}
	m.updates[name]++
	if u.Status != nil {
		src.Status = *u.Status
	}
	if u.LastFetchStatus != nil {
		src.LastFetchStatus = *u.LastFetchStatus
	}
	if u.ConsecutiveFailCount != nil {
		src.ConsecutiveFailCount = *u.ConsecutiveFailCount
	}
	if u.LastFetchMs != nil {
		src.LastFetchMs = *u.LastFetchMs
	}
	if u.LastItemKey != nil {
		src.LastItemKey = *u.LastItemKey
	}
	if u.LastItemPubMs != nil {
		src.LastItemPubMs = *u.LastItemPubMs
	}
	if u.FailedItems != nil {
		src.FailedItems = *u.FailedItems
	}
	return nil
}

func (m *memSources) get(name string) database.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sources[name]
}

type memRecords struct {
	mu       sync.Mutex
	records  []database.Record
	creates  map[string]int
	failKeys map[string]bool
	featured map[string]bool
}

func newMemRecords() *memRecords {
	return &memRecords{creates: map[string]int{}, failKeys: map[string]bool{}, featured: map[string]bool{}}
}

func (m *memRecords) CreateRecord(ctx context.Context, r database.Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failKeys[r.ItemKey] {
		return "", errors.New("disk full")
	}
	m.creates[r.ItemKey]++
	r.ID = fmt.Sprintf("rec-%d", len(m.records)+1)
	r.CreatedAt = time.Now()
	m.records = append(m.records, r)
	return r.ID, nil
}

func (m *memRecords) SetFeatured(ctx context.Context, ids []string, featured bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.featured[id] = featured
	}
	return nil
}

func (m *memRecords) ListRecords(ctx context.Context, filter database.RecordFilter) ([]database.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.Record(nil), m.records...), nil
}

func (m *memRecords) GetRecordCount(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *memRecords) RecentItemKeys(ctx context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for i := len(m.records) - 1; i >= 0 && (limit <= 0 || len(keys) < limit); i-- {
		keys = append(keys, m.records[i].ItemKey)
	}
	return keys, nil
}

func (m *memRecords) createCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates[key]
}

type fakeFetcher struct {
	mu      sync.Mutex
	entries map[string][]feed.Entry
	errs    map[string]error
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{entries: map[string][]feed.Entry{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, cfg *feed.Config, maxEntries int) ([]feed.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[cfg.Name]++
	if err := f.errs[cfg.Name]; err != nil {
		return nil, err
	}
	entries := f.entries[cfg.Name]
	if maxEntries > 0 && len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	return entries, nil
}

// titleScorer answers per article title; unknown titles score 8.
type titleScorer struct {
	mu      sync.Mutex
	results map[string]oracle.Result
	calls   map[string]int
}

func newTitleScorer() *titleScorer {
	return &titleScorer{results: map[string]oracle.Result{}, calls: map[string]int{}}
}

func (s *titleScorer) set(title string, result oracle.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[title] = result
}

func (s *titleScorer) Analyze(ctx context.Context, article oracle.Article) oracle.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[article.Title]++
	if result, ok := s.results[article.Title]; ok {
		return result
	}
	return acceptedScore(8, "zh "+article.Title)
}

func (s *titleScorer) callCount(title string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[title]
}

func acceptedScore(score float64, title string) oracle.Result {
	return oracle.Result{
		Verdict: oracle.Accepted,
		Analysis: oracle.Analysis{
			Categories: []string{"AI News"},
			Score:      score,
			Title:      title,
			OneLiner:   "gist of " + title,
			Points:     []string{"point"},
		},
	}
}

func failedResult(reason string, err error) oracle.Result {
	return oracle.Result{Verdict: oracle.Failed, Reason: reason, Err: err}
}

type fakeCurator struct {
	items []oracle.CurationItem
	pick  func(items []oracle.CurationItem) []string
	err   error
}

func (c *fakeCurator) Curate(ctx context.Context, items []oracle.CurationItem) ([]string, error) {
	c.items = append(c.items, items...)
	if c.err != nil {
		return nil, c.err
	}
	if c.pick == nil {
		return nil, nil
	}
	return c.pick(items), nil
}

type fakeEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float64{1, 0}, nil
}

type fakeIndex struct {
	mu        sync.Mutex
	matches   []vector.Match
	err       error
	upsertErr error
	upserted  map[string]map[string]any
}

func (i *fakeIndex) Query(ctx context.Context, values []float64, topK int) ([]vector.Match, error) {
	if i.err != nil {
		return nil, i.err
	}
	return i.matches, nil
}

func (i *fakeIndex) Upsert(ctx context.Context, id string, values []float64, metadata map[string]any) error {
	if i.upsertErr != nil {
		return i.upsertErr
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.upserted == nil {
		i.upserted = map[string]map[string]any{}
	}
	i.upserted[id] = metadata
	return nil
}
