package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lysyi3m/rss-triage/app/vector"
)

// DedupDecision is the gate's verdict. Err carries an embedding or query
// failure for reporting; the item is let through when it is set.
type DedupDecision struct {
	Skip       bool
	Similarity float64
	Embedding  []float64
	Err        error
}

// DedupGate suppresses near-duplicates through an embedding index. Every
// failure along the way lets the item through.
type DedupGate struct {
	embedder vector.Embedder
	index    vector.Index
	settings DedupSettings
}

func NewDedupGate(embedder vector.Embedder, index vector.Index, settings DedupSettings) *DedupGate {
	if settings.TopK <= 0 {
		settings.TopK = 5
	}
	if settings.Metric == "" {
		settings.Metric = vector.MetricCosine
	}
	return &DedupGate{embedder: embedder, index: index, settings: settings}
}

func (g *DedupGate) enabled() bool {
	return g != nil && g.settings.Enabled && g.embedder != nil && g.index != nil
}

func (g *DedupGate) Check(ctx context.Context, text string) DedupDecision {
	if !g.enabled() || strings.TrimSpace(text) == "" {
		return DedupDecision{}
	}

	embedding, err := g.embedder.Embed(ctx, text)
	if err != nil || len(embedding) == 0 {
		slog.Warn("Embedding unavailable, falling back to exact dedup", "error", err)
		return DedupDecision{Err: err}
	}

	matches, err := g.index.Query(ctx, embedding, g.settings.TopK)
	if err != nil {
		slog.Warn("Similarity query failed, falling back to exact dedup", "error", err)
		return DedupDecision{Embedding: embedding, Err: err}
	}

	similarity, ok := vector.BestSimilarity(matches, g.settings.Metric)
	if !ok {
		return DedupDecision{Embedding: embedding}
	}

	return DedupDecision{
		Skip:       IsDuplicate(similarity, g.settings.Threshold),
		Similarity: similarity,
		Embedding:  embedding,
	}
}

// Remember stores the embedding of a persisted item under its stable id. The
// returned error is informational; the record is already stored.
func (g *DedupGate) Remember(ctx context.Context, itemKey string, embedding []float64, metadata map[string]any) error {
	if !g.enabled() || len(embedding) == 0 {
		return nil
	}
	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["item_key"] = itemKey

	if err := g.index.Upsert(ctx, vector.ID(itemKey), embedding, meta); err != nil {
		slog.Warn("Failed to store embedding", "item_key", itemKey, "error", err)
		return err
	}
	return nil
}

// IsDuplicate compares inclusively: a similarity equal to the threshold is a
// duplicate.
func IsDuplicate(similarity, threshold float64) bool {
	return similarity >= threshold
}
