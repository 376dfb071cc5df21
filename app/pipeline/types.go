// Package pipeline turns fetched feed entries into persisted records: it
// plans candidates per source, scores them concurrently, suppresses
// duplicates and reconciles source state at the end of a run.
package pipeline

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/ledger"
	"github.com/lysyi3m/rss-triage/app/oracle"
)

type Origin int

const (
	OriginFresh Origin = iota
	OriginRetried
)

func (o Origin) String() string {
	if o == OriginRetried {
		return "retried"
	}
	return "fresh"
}

// Candidate is a feed entry selected for scoring in the current run.
type Candidate struct {
	Source      string
	ItemKey     string
	Entry       feed.Entry
	PublishedMs int64
	Origin      Origin
	// Prior is the ledger entry being retried, nil for fresh candidates.
	Prior *ledger.Item
	// Extract asks for the linked page to be fetched before scoring.
	Extract bool
}

type Outcome int

const (
	OutcomePersisted Outcome = iota + 1
	OutcomeLowScore
	OutcomeDuplicate
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePersisted:
		return "persisted"
	case OutcomeLowScore:
		return "low_score"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats is the run-level summary reported at the end of a run.
type Stats struct {
	SourcesProcessed int `json:"sources_processed"`
	SourcesSkipped   int `json:"sources_skipped"`
	SourcesFailed    int `json:"sources_failed"`
	EntriesFetched   int `json:"entries_fetched"`
	Queued           int `json:"queued"`
	New              int `json:"new"`
	ScoredOK         int `json:"scored_ok"`
	ScoredFailed     int `json:"scored_failed"`
	LowScore         int `json:"low_score"`
	StoreFailed      int `json:"store_failed"`
	DedupSkipped     int `json:"dedup_skipped"`
	ExactDuplicates  int `json:"exact_duplicates"`
	Featured         int `json:"featured"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Fetcher interface {
	Fetch(ctx context.Context, feedConfig *feed.Config, maxEntries int) ([]feed.Entry, error)
}

type Filter interface {
	Run(entries []feed.Entry, feedConfig *feed.Config) []feed.Entry
}

type Extractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

type Scorer interface {
	Analyze(ctx context.Context, article oracle.Article) oracle.Result
}

type Curator interface {
	Curate(ctx context.Context, items []oracle.CurationItem) ([]string, error)
}

type ConfigProvider interface {
	GetConfigs() []*feed.Config
}

// ProgressFunc receives best-effort progress updates from the scoring queue.
type ProgressFunc func(done, total, ok, failed int)

type DedupSettings struct {
	Enabled   bool
	TopK      int
	Threshold float64
	Metric    string
}

type Settings struct {
	PublishThreshold float64
	Workers          int
	Ledger           ledger.Limits
	FetchInterval    time.Duration
	MaxEntries       int
	SeenPrefetch     int
	MaxContentRunes  int
	Dedup            DedupSettings
	Curate           bool
}

func DefaultSettings() Settings {
	return Settings{
		PublishThreshold: 6.0,
		Workers:          4,
		Ledger:           ledger.DefaultLimits(),
		FetchInterval:    180 * time.Minute,
		MaxEntries:       200,
		SeenPrefetch:     500,
		MaxContentRunes:  12000,
		Dedup: DedupSettings{
			Enabled:   true,
			TopK:      5,
			Threshold: 0.88,
			Metric:    "cosine",
		},
		Curate: true,
	}
}
