package api

import (
	"github.com/lysyi3m/rss-triage/app/database"
	"github.com/lysyi3m/rss-triage/app/feed"
	"github.com/lysyi3m/rss-triage/app/pipeline"
	"github.com/lysyi3m/rss-triage/app/tasks"
)

type GeneratorInterface interface {
	Run(channel feed.Channel, items []feed.DigestItem) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type ConfigStore interface {
	GetConfigs() []*feed.Config
	GetConfig(feedName string) (*feed.Config, error)
	LoadConfig(feedName string) (*feed.Config, error)
	GetConfigCount() int
}

var _ ConfigStore = (*feed.ConfigCache)(nil)

type StatsProvider interface {
	LastStats() (pipeline.Stats, bool)
}

type Handler struct {
	sourceRepo       database.SourceRepository
	recordRepo       database.RecordRepository
	notificationRepo database.NotificationRepository
	generator        GeneratorInterface
	configCache      ConfigStore
	scheduler        tasks.TaskSchedulerInterface
	stats            StatsProvider
	channel          feed.Channel
}
