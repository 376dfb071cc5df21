package pipeline

import (
	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/errkind"
	"github.com/lysyi3m/rss-triage/app/ledger"
)

const (
	StatusOK       = "ok"
	StatusUnstable = "unstable"
	StatusDead     = "dead"
	StatusIdle     = "idle"
)

const (
	FetchSuccess    = "success"
	FetchTimeout    = "timeout"
	FetchHTTPError  = "http_error"
	FetchParseError = "parse_error"
)

const (
	unstableAfter = 2
	deadAfter     = 5
)

func HealthStatus(consecutiveFails int, enabled bool) string {
	switch {
	case !enabled:
		return StatusIdle
	case consecutiveFails >= deadAfter:
		return StatusDead
	case consecutiveFails >= unstableAfter:
		return StatusUnstable
	default:
		return StatusOK
	}
}

// FetchStatus maps a fetch error onto the status recorded for the source.
func FetchStatus(err error) string {
	if err == nil {
		return FetchSuccess
	}
	switch errkind.KindOf(err) {
	case errkind.Timeout:
		return FetchTimeout
	case errkind.Parse:
		return FetchParseError
	default:
		return FetchHTTPError
	}
}

// ShouldFetch reports whether an enabled source is due for a fetch.
func ShouldFetch(src database.Source, nowMs int64, interval int64) bool {
	if src.LastFetchMs <= 0 {
		return true
	}
	return nowMs-src.LastFetchMs >= interval
}

func IdleUpdate() database.SourceUpdate {
	status := StatusIdle
	return database.SourceUpdate{Status: &status}
}

// FetchFailureUpdate records a failed fetch. Items and the ledger are left
// untouched.
func FetchFailureUpdate(src database.Source, err error, nowMs int64) database.SourceUpdate {
	fails := src.ConsecutiveFailCount + 1
	status := HealthStatus(fails, true)
	fetchStatus := FetchStatus(err)
	return database.SourceUpdate{
		Status:               &status,
		LastFetchStatus:      &fetchStatus,
		ConsecutiveFailCount: &fails,
		LastFetchMs:          &nowMs,
	}
}

// SuccessUpdate records a successful fetch. Item-level failures do not affect
// fetch health. The watermark only moves forward and the ledger is pruned
// before it is stored.
func SuccessUpdate(src database.Source, plan SourcePlan, items []ledger.Item, limits ledger.Limits, nowMs int64) (database.SourceUpdate, error) {
	fails := 0
	status := HealthStatus(fails, true)
	fetchStatus := FetchSuccess

	serialized, err := ledger.Serialize(ledger.Prune(items, nowMs, limits))
	if err != nil {
		return database.SourceUpdate{}, err
	}

	update := database.SourceUpdate{
		Status:               &status,
		LastFetchStatus:      &fetchStatus,
		ConsecutiveFailCount: &fails,
		LastFetchMs:          &nowMs,
		FailedItems:          &serialized,
	}
	if plan.WatermarkMs > src.LastItemPubMs {
		watermark, key := plan.WatermarkMs, plan.WatermarkKey
		update.LastItemPubMs = &watermark
		update.LastItemKey = &key
	}
	return update, nil
}
