package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/pipeline"
)

// SyncSourceConfigTask copies a YAML source definition into the sources
// table. State columns owned by the pipeline are left alone.
type SyncSourceConfigTask struct {
	Task
	FeedConfig *feed.Config
	sourceRepo database.SourceRepository
}

func NewSyncSourceConfigTask(feedConfig *feed.Config, sourceRepo database.SourceRepository) *SyncSourceConfigTask {
	return &SyncSourceConfigTask{
		Task:       NewTask(TaskTypeSyncSourceConfig, feedConfig.Name),
		FeedConfig: feedConfig,
		sourceRepo: sourceRepo,
	}
}

func (t *SyncSourceConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.sourceRepo.UpsertSource(ctx, pipeline.SourceConfigFrom(t.FeedConfig)); err != nil {
		slog.Error("Task failed", "type", string(t.Type), "feed", t.FeedName, "error", err)
		return fmt.Errorf("failed to sync source config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"feed", t.FeedName,
		"enabled", t.FeedConfig.Settings.Enabled,
		"duration", t.GetDuration())

	return nil
}
