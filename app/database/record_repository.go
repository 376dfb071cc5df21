package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var _ RecordRepository = (*RecordRepo)(nil)

const (
	DefaultRecordLimit = 50
	MaxRecordLimit     = 500
)

var recordColumns = []string{
	"id", "item_key", "source", "title", "original_title", "link", "score",
	"categories", "summary", "content", "published_ms", "featured", "created_at",
}

type RecordRepo struct {
	db *DB
}

func NewRecordRepository(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// CreateRecord inserts a record and returns its id. The store does not
// deduplicate by item key.
func (r *RecordRepo) CreateRecord(ctx context.Context, record Record) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	categories, err := json.Marshal(nonNil(record.Categories))
	if err != nil {
		return "", fmt.Errorf("failed to encode categories: %w", err)
	}

	query, args, err := psql.Insert("records").
		Columns(recordColumns...).
		Values(
			record.ID, record.ItemKey, record.Source, record.Title, record.OriginalTitle, record.Link,
			record.Score, string(categories), record.Summary, record.Content, record.PublishedMs,
			boolToInt(record.Featured), record.CreatedAt.UnixMilli(),
		).ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to create record: %w", err)
	}
	return record.ID, nil
}

func (r *RecordRepo) SetFeatured(ctx context.Context, ids []string, featured bool) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := psql.Update("records").
		Set("featured", boolToInt(featured)).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update featured flag: %w", err)
	}
	return nil
}

// ListRecords returns records newest first.
func (r *RecordRepo) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultRecordLimit
	}
	if limit > MaxRecordLimit {
		limit = MaxRecordLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	builder := psql.Select(recordColumns...).From("records").
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if filter.Source != "" {
		builder = builder.Where(sq.Eq{"source": filter.Source})
	}
	if filter.Featured != nil {
		builder = builder.Where(sq.Eq{"featured": boolToInt(*filter.Featured)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var categories string
		var featured int
		var createdAt int64
		if err := rows.Scan(
			&rec.ID, &rec.ItemKey, &rec.Source, &rec.Title, &rec.OriginalTitle, &rec.Link, &rec.Score,
			&categories, &rec.Summary, &rec.Content, &rec.PublishedMs, &featured, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(categories), &rec.Categories); err != nil {
			rec.Categories = nil
		}
		rec.Featured = featured != 0
		rec.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *RecordRepo) GetRecordCount(ctx context.Context) (int, error) {
	var count int
	query, args, err := psql.Select("COUNT(*)").From("records").ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// RecentItemKeys returns the item keys of the newest records, used to seed
// the per-run seen set.
func (r *RecordRepo) RecentItemKeys(ctx context.Context, limit int) ([]string, error) {
	builder := psql.Select("item_key").From("records").
		Where(sq.NotEq{"item_key": ""}).
		OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query item keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan item key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
