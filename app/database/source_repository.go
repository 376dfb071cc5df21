package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var _ SourceRepository = (*SourceRepo)(nil)

var sourceColumns = []string{
	"name", "title", "feed_url", "enabled", "item_id_strategy", "content_hash_algo",
	"status", "last_fetch_ms", "last_fetch_status", "consecutive_fail_count",
	"last_item_key", "last_item_pub_ms", "failed_items", "created_at", "updated_at",
}

type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) GetSource(ctx context.Context, name string) (*Source, error) {
	query, args, err := psql.Select(sourceColumns...).From("sources").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	source, err := scanSource(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

func (r *SourceRepo) ListSources(ctx context.Context) ([]Source, error) {
	query, args, err := psql.Select(sourceColumns...).From("sources").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *source)
	}
	return sources, rows.Err()
}

func (r *SourceRepo) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	query, args, err := psql.Select("COUNT(*)").From("sources").ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

// UpsertSource syncs the YAML-owned columns and leaves run state untouched.
func (r *SourceRepo) UpsertSource(ctx context.Context, cfg SourceConfig) error {
	now := time.Now().UnixMilli()

	query, args, err := psql.Insert("sources").
		Columns("name", "title", "feed_url", "enabled", "item_id_strategy", "content_hash_algo", "created_at", "updated_at").
		Values(cfg.Name, cfg.Title, cfg.FeedURL, boolToInt(cfg.Enabled), cfg.ItemIDStrategy, cfg.ContentHashAlgo, now, now).
		Suffix(`ON CONFLICT(name) DO UPDATE SET
			title = excluded.title,
			feed_url = excluded.feed_url,
			enabled = excluded.enabled,
			item_id_strategy = excluded.item_id_strategy,
			content_hash_algo = excluded.content_hash_algo,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

func (r *SourceRepo) UpdateSourceState(ctx context.Context, name string, update SourceUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	builder := psql.Update("sources").Set("updated_at", time.Now().UnixMilli())
	if update.Status != nil {
		builder = builder.Set("status", *update.Status)
	}
	if update.LastFetchStatus != nil {
		builder = builder.Set("last_fetch_status", *update.LastFetchStatus)
	}
	if update.ConsecutiveFailCount != nil {
		builder = builder.Set("consecutive_fail_count", *update.ConsecutiveFailCount)
	}
	if update.LastFetchMs != nil {
		builder = builder.Set("last_fetch_ms", *update.LastFetchMs)
	}
	if update.LastItemKey != nil {
		builder = builder.Set("last_item_key", *update.LastItemKey)
	}
	if update.LastItemPubMs != nil {
		builder = builder.Set("last_item_pub_ms", *update.LastItemPubMs)
	}
	if update.FailedItems != nil {
		builder = builder.Set("failed_items", *update.FailedItems)
	}

	query, args, err := builder.Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update source state: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("source '%s' not found", name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var s Source
	var enabled int
	var createdAt, updatedAt int64

	err := row.Scan(
		&s.Name, &s.Title, &s.FeedURL, &enabled, &s.ItemIDStrategy, &s.ContentHashAlgo,
		&s.Status, &s.LastFetchMs, &s.LastFetchStatus, &s.ConsecutiveFailCount,
		&s.LastItemKey, &s.LastItemPubMs, &s.FailedItems, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Enabled = enabled != 0
	s.CreatedAt = time.UnixMilli(createdAt)
	s.UpdatedAt = time.UnixMilli(updatedAt)
	return &s, nil
}
