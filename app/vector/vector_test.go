package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-triage/app/database"
)

func ptr(v float64) *float64 { return &v }

func TestBestSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		matches  []Match
		metric   string
		expected float64
		ok       bool
	}{
		{"no matches", nil, MetricCosine, 0, true},
		{"score", []Match{{Score: ptr(0.91)}, {Score: ptr(0.5)}}, MetricCosine, 0.91, true},
		{"score wins over distance", []Match{{Score: ptr(0.7), Distance: ptr(0.1)}}, MetricCosine, 0.7, true},
		{"cosine distance", []Match{{Distance: ptr(0.25)}}, MetricCosine, 0.75, true},
		{"euclidean distance", []Match{{Distance: ptr(0.25)}}, MetricEuclidean, 0, false},
		{"nothing reported", []Match{{ID: "x"}}, MetricCosine, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			similarity, ok := BestSimilarity(tt.matches, tt.metric)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, similarity, 1e-9)
		})
	}
}

func TestID(t *testing.T) {
	id := ID("https://example.com/a")
	assert.Len(t, id, 64)
	assert.Equal(t, id, ID("https://example.com/a"))
	assert.NotEqual(t, id, ID("https://example.com/b"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
}

type memoryVectorRepo struct {
	vectors map[string]database.Vector
}

func (r *memoryVectorRepo) UpsertVector(ctx context.Context, v database.Vector) error {
	if r.vectors == nil {
		r.vectors = map[string]database.Vector{}
	}
	r.vectors[v.ID] = v
	return nil
}

func (r *memoryVectorRepo) ListVectors(ctx context.Context) ([]database.Vector, error) {
	out := make([]database.Vector, 0, len(r.vectors))
	for _, v := range r.vectors {
		out = append(out, v)
	}
	return out, nil
}

func TestLocalIndex(t *testing.T) {
	ctx := context.Background()
	repo := &memoryVectorRepo{}
	index := NewLocalIndex(repo)

	require.NoError(t, index.Upsert(ctx, "a", []float64{1, 0, 0}, map[string]any{"item_key": "key-a"}))
	require.NoError(t, index.Upsert(ctx, "b", []float64{0.9, 0.1, 0}, map[string]any{"item_key": "key-b"}))
	require.NoError(t, index.Upsert(ctx, "c", []float64{0, 0, 1}, nil))
	require.NoError(t, index.Upsert(ctx, "short", []float64{1, 0}, nil))
	assert.Equal(t, "key-a", repo.vectors["a"].ItemKey)

	matches, err := index.Query(ctx, []float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)

	similarity, ok := BestSimilarity(matches, MetricCosine)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, similarity, 1e-9)
}

func TestLocalIndexEmpty(t *testing.T) {
	matches, err := NewLocalIndex(&memoryVectorRepo{}).Query(context.Background(), []float64{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
