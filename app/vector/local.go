package vector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lysyi3m/rss-triage/app/database"
)

// LocalIndex is a brute-force cosine index over vectors stored in SQLite.
type LocalIndex struct {
	repo database.VectorRepository
}

func NewLocalIndex(repo database.VectorRepository) *LocalIndex {
	return &LocalIndex{repo: repo}
}

func (i *LocalIndex) Query(ctx context.Context, values []float64, topK int) ([]Match, error) {
	vectors, err := i.repo.ListVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vectors: %w", err)
	}

	matches := make([]Match, 0, len(vectors))
	for _, v := range vectors {
		if len(v.Values) != len(values) {
			continue
		}
		score := CosineSimilarity(values, v.Values)
		matches = append(matches, Match{ID: v.ID, Score: &score})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return *matches[a].Score > *matches[b].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (i *LocalIndex) Upsert(ctx context.Context, id string, values []float64, metadata map[string]any) error {
	itemKey, _ := metadata["item_key"].(string)
	return i.repo.UpsertVector(ctx, database.Vector{
		ID:        id,
		ItemKey:   itemKey,
		Values:    values,
		Metadata:  metadata,
		UpdatedMs: time.Now().UnixMilli(),
	})
}
