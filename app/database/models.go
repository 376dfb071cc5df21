package database

import (
	"time"
)

// Source is a feed subscription together with its fetch state.
type Source struct {
	Name                 string
	Title                string
	FeedURL              string
	Enabled              bool
	ItemIDStrategy       string
	ContentHashAlgo      string
	Status               string
	LastFetchMs          int64
	LastFetchStatus      string
	ConsecutiveFailCount int
	LastItemKey          string
	LastItemPubMs        int64
	FailedItems          string // serialized ledger
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SourceConfig is the subset of Source owned by the YAML definition.
type SourceConfig struct {
	Name            string
	Title           string
	FeedURL         string
	Enabled         bool
	ItemIDStrategy  string
	ContentHashAlgo string
}

// SourceUpdate carries the state fields written at the end of a run.
// Nil fields are left untouched.
type SourceUpdate struct {
	Status               *string
	LastFetchStatus      *string
	ConsecutiveFailCount *int
	LastFetchMs          *int64
	LastItemKey          *string
	LastItemPubMs        *int64
	FailedItems          *string
}

func (u SourceUpdate) IsEmpty() bool {
	return u.Status == nil && u.LastFetchStatus == nil && u.ConsecutiveFailCount == nil &&
		u.LastFetchMs == nil && u.LastItemKey == nil && u.LastItemPubMs == nil && u.FailedItems == nil
}

type Record struct {
	ID            string
	ItemKey       string
	Source        string
	Title         string
	OriginalTitle string
	Link          string
	Score         float64
	Categories    []string
	Summary       string
	Content       string
	PublishedMs   int64
	Featured      bool
	CreatedAt     time.Time
}

type RecordFilter struct {
	Source   string
	Featured *bool
	Limit    int
	Offset   int
}

type Notification struct {
	ID          int64
	Event       string
	ErrorType   string
	Detail      string
	Notice      string
	TriggeredMs int64
	Notified    bool
}

type Vector struct {
	ID        string
	ItemKey   string
	Values    []float64
	Metadata  map[string]any
	UpdatedMs int64
}
