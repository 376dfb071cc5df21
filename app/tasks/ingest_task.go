package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-triage/app/errkind"
)

// IngestTask runs the pipeline once. Item failures are retried by the
// failed-item ledger on the next run, so the task itself is not retried.
type IngestTask struct {
	Task
	runner Runner
	done   func()
}

func NewIngestTask(runner Runner) *IngestTask {
	task := &IngestTask{
		Task:   NewTask(TaskTypeIngest, ""),
		runner: runner,
	}
	task.MaxRetries = 0
	task.Timeout = 0
	return task
}

func (t *IngestTask) Execute(ctx context.Context) error {
	if t.done != nil {
		defer t.done()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats, err := t.runner.Run(ctx)
	if err != nil {
		if errkind.KindOf(err) == errkind.Config {
			slog.Error("Ingest aborted by configuration error", "id", t.ID, "error", err)
		}
		return fmt.Errorf("ingest run failed: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"id", t.ID,
		"queued", stats.Queued,
		"new", stats.New,
		"scored_failed", stats.ScoredFailed,
		"duration", t.GetDuration())

	return nil
}
