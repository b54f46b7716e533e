package welfare

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Selection is the outcome of a welfare search over a pool.
type Selection struct {
	Index     int    `json:"index"`
	Slate     Slate  `json:"slate"`
	Result    Result `json:"result"`
	Evaluated int    `json:"evaluated"`
	Penalized int    `json:"penalized"`
}

// Selector scans a candidate pool for the slate with the highest welfare score.
type Selector struct {
	evaluator *Evaluator
	workers   int
	logger    *slog.Logger
}

// NewSelector creates a Selector. workers <= 1 evaluates sequentially.
func NewSelector(e *Evaluator, workers int, logger *slog.Logger) *Selector {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{evaluator: e, workers: workers, logger: logger}
}

// Select evaluates every candidate and returns the first one, in pool order,
// that attains the maximum score. The full pool is always scored.
func (s *Selector) Select(ctx context.Context, pool Pool, cat *Catalog) (Selection, error) {
	if len(pool) == 0 {
		return Selection{}, ErrEmptyPool
	}
	if err := s.evaluator.stakeholders.CheckSchema(cat); err != nil {
		return Selection{}, err
	}

	results, err := s.evaluateAll(ctx, pool, cat)
	if err != nil {
		return Selection{}, err
	}

	best := 0
	penalized := 0
	for i, r := range results {
		if r.Penalty > 0 {
			penalized++
		}
		if r.Score > results[best].Score {
			best = i
		}
	}

	s.logger.Debug("slate selected",
		"index", best,
		"score", results[best].Score,
		"penalty", results[best].Penalty,
		"pool_size", len(pool),
		"penalized", penalized,
	)

	return Selection{
		Index:     best,
		Slate:     append(Slate(nil), pool[best]...),
		Result:    results[best],
		Evaluated: len(results),
		Penalized: penalized,
	}, nil
}

// evaluateAll returns results indexed like the pool, whatever the completion
// order of the workers.
func (s *Selector) evaluateAll(ctx context.Context, pool Pool, cat *Catalog) ([]Result, error) {
	results := make([]Result, len(pool))

	if s.workers == 1 {
		for i, slate := range pool {
			r, err := s.evaluator.Evaluate(slate, cat)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, slate := range pool {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.evaluator.Evaluate(slate, cat)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SelectOptimalSlate scores the pool sequentially with a unit penalty weight
// and returns the winning slate and its breakdown.
func SelectOptimalSlate(pool Pool, cat *Catalog, ss Stakeholders, fairnessThreshold float64) (Slate, Result, error) {
	e, err := NewEvaluator(ss, FairnessPolicy{Threshold: fairnessThreshold, PenaltyWeight: 1.0})
	if err != nil {
		return nil, Result{}, err
	}
	sel, err := NewSelector(e, 1, nil).Select(context.Background(), pool, cat)
	if err != nil {
		return nil, Result{}, err
	}
	return sel.Slate, sel.Result, nil
}
