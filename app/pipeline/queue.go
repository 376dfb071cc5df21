package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

type HandleFunc func(ctx context.Context, c Candidate) Outcome

// Queue drains candidates with a bounded number of workers. Every candidate
// yields exactly one outcome; a panicking handler is recovered and reported
// through OnPanic.
type Queue struct {
	workers    int
	OnPanic    func(c Candidate, recovered any) Outcome
	OnProgress ProgressFunc
}

func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{workers: workers}
}

func (q *Queue) Run(ctx context.Context, candidates []Candidate, handle HandleFunc) []Outcome {
	outcomes := make([]Outcome, len(candidates))
	total := len(candidates)

	var mu sync.Mutex
	done, ok, failed := 0, 0, 0

	var g errgroup.Group
	g.SetLimit(q.workers)
	for i, c := range candidates {
		g.Go(func() error {
			outcome := q.safeHandle(ctx, c, handle)
			outcomes[i] = outcome

			mu.Lock()
			done++
			if outcome == OutcomeFailed {
				failed++
			} else {
				ok++
			}
			d, o, f := done, ok, failed
			mu.Unlock()

			if q.OnProgress != nil {
				q.OnProgress(d, total, o, f)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (q *Queue) safeHandle(ctx context.Context, c Candidate, handle HandleFunc) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Candidate handler panicked", "source", c.Source, "item_key", c.ItemKey, "panic", r)
			outcome = OutcomeFailed
			if q.OnPanic != nil {
				outcome = q.OnPanic(c, r)
			}
		}
	}()
	return handle(ctx, c)
}
