// Package vector holds the embedding and similarity-index collaborators used
// for near-duplicate suppression.
package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
)

const (
	MetricCosine     = "cosine"
	MetricEuclidean  = "euclidean"
	MetricDotProduct = "dot-product"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Match is one neighbour returned by an index. Indexes report either a
// similarity score or a distance; the other field is nil.
type Match struct {
	ID       string
	Score    *float64
	Distance *float64
}

type Index interface {
	Query(ctx context.Context, values []float64, topK int) ([]Match, error)
	Upsert(ctx context.Context, id string, values []float64, metadata map[string]any) error
}

// BestSimilarity converts the first match into a similarity. No matches is a
// similarity of 0. A distance is only convertible under the cosine metric; ok
// is false when the similarity cannot be determined.
func BestSimilarity(matches []Match, metric string) (similarity float64, ok bool) {
	if len(matches) == 0 {
		return 0, true
	}
	best := matches[0]
	if best.Score != nil {
		return *best.Score, true
	}
	if best.Distance != nil && strings.EqualFold(metric, MetricCosine) {
		return 1 - *best.Distance, true
	}
	return 0, false
}

// ID derives the stable vector id of an item key.
func ID(itemKey string) string {
	sum := sha256.Sum256([]byte(itemKey))
	return hex.EncodeToString(sum[:])
}

func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
