package database

import (
	"context"
)

type SourceRepository interface {
	GetSource(ctx context.Context, name string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	GetSourceCount(ctx context.Context) (int, error)

	UpsertSource(ctx context.Context, cfg SourceConfig) error
	UpdateSourceState(ctx context.Context, name string, update SourceUpdate) error
}

type RecordRepository interface {
	CreateRecord(ctx context.Context, record Record) (string, error)
	SetFeatured(ctx context.Context, ids []string, featured bool) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	GetRecordCount(ctx context.Context) (int, error)
	RecentItemKeys(ctx context.Context, limit int) ([]string, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n Notification) (int64, error)
	MarkNotified(ctx context.Context, id int64) error
	ListNotifications(ctx context.Context, limit int) ([]Notification, error)
}

type VectorRepository interface {
	UpsertVector(ctx context.Context, v Vector) error
	ListVectors(ctx context.Context) ([]Vector, error)
}
