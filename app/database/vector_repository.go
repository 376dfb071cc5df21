package database

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

var _ VectorRepository = (*VectorRepo)(nil)

type VectorRepo struct {
	db *DB
}

func NewVectorRepository(db *DB) *VectorRepo {
	return &VectorRepo{db: db}
}

func (r *VectorRepo) UpsertVector(ctx context.Context, v Vector) error {
	if v.ID == "" {
		return fmt.Errorf("vector id is required")
	}
	if v.UpdatedMs == 0 {
		v.UpdatedMs = time.Now().UnixMilli()
	}

	metadata, err := json.Marshal(v.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query, args, err := psql.Insert("vectors").
		Columns("id", "item_key", "dims", "embedding", "metadata", "updated_ms").
		Values(v.ID, v.ItemKey, len(v.Values), encodeVector(v.Values), string(metadata), v.UpdatedMs).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			item_key = excluded.item_key,
			dims = excluded.dims,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_ms = excluded.updated_ms`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

func (r *VectorRepo) ListVectors(ctx context.Context) ([]Vector, error) {
	query, args, err := psql.Select("id", "item_key", "embedding", "metadata", "updated_ms").From("vectors").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vectors: %w", err)
	}
	defer rows.Close()

	var vectors []Vector
	for rows.Next() {
		var v Vector
		var blob []byte
		var metadata string
		if err := rows.Scan(&v.ID, &v.ItemKey, &blob, &metadata, &v.UpdatedMs); err != nil {
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		v.Values = decodeVector(blob)
		if err := json.Unmarshal([]byte(metadata), &v.Metadata); err != nil {
			v.Metadata = nil
		}
		vectors = append(vectors, v)
	}
	return vectors, rows.Err()
}

// Embeddings are stored as little-endian float32.
func encodeVector(values []float64) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

func decodeVector(buf []byte) []float64 {
	values := make([]float64, len(buf)/4)
	for i := range values {
		values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
	}
	return values
}
