package tasks

import (
	"context"

	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/pipeline"
)

// TaskSchedulerInterface is used by the HTTP API and main to drive background work.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	// EnqueueIngest queues one pipeline run unless a run is already pending.
	EnqueueIngest() (TaskInterface, error)
}

// Runner executes one ingestion pass.
type Runner interface {
	Run(ctx context.Context) (pipeline.Stats, error)
}

type ConfigProvider interface {
	GetConfigs() []*feed.Config
}
