package pipeline

import (
	"context"

	"github.com/lysyi3m/rss-triage/app/oracle"
)

type ScoreVerdict int

const (
	ScorePublish ScoreVerdict = iota + 1
	ScoreLow
	ScoreFailed
)

type ScoreDecision struct {
	Verdict ScoreVerdict
	Result  oracle.Result
}

// ScoringGate classifies an oracle answer into publish, low score or a
// transient failure that belongs in the failed-item ledger.
type ScoringGate struct {
	scorer    Scorer
	threshold float64
}

func NewScoringGate(scorer Scorer, threshold float64) *ScoringGate {
	return &ScoringGate{scorer: scorer, threshold: threshold}
}

func (g *ScoringGate) Score(ctx context.Context, article oracle.Article) ScoreDecision {
	result := g.scorer.Analyze(ctx, article)
	if result.Verdict != oracle.Accepted {
		return ScoreDecision{Verdict: ScoreFailed, Result: result}
	}
	if !Publishable(result.Analysis.Score, g.threshold) {
		return ScoreDecision{Verdict: ScoreLow, Result: result}
	}
	return ScoreDecision{Verdict: ScorePublish, Result: result}
}

// Publishable compares inclusively: a score equal to the threshold passes.
func Publishable(score, threshold float64) bool {
	return score >= threshold
}
