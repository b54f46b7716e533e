package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Equilibrium/internal/config"
	"github.com/MikeSquared-Agency/Equilibrium/internal/hermes"
	"github.com/MikeSquared-Agency/Equilibrium/internal/store"
	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

var (
	// ErrNoCatalog is returned when a run is requested before a catalog is loaded.
	ErrNoCatalog = errors.New("no catalog loaded")
	// ErrOutOfRange is returned when a requested pool or slate size exceeds
	// the configured limits or is negative.
	ErrOutOfRange = errors.New("run parameter out of range")
)

// Limits applied when the configuration leaves them unset.
const (
	DefaultMaxPoolSize  = 100000
	DefaultMaxSlateSize = 100
)

// CatalogLoader builds a fresh catalog, typically from the dataset directory.
type CatalogLoader func(ctx context.Context) (*welfare.Catalog, error)

// RunRequest overrides selection parameters for a single run. Zero values
// fall back to configuration.
type RunRequest struct {
	SlateSize         int      `json:"slate_size,omitempty"`
	PoolSize          int      `json:"pool_size,omitempty"`
	Seed              *uint64  `json:"seed,omitempty"`
	FairnessThreshold *float64 `json:"fairness_threshold,omitempty"`
	PenaltyWeight     *float64 `json:"penalty_weight,omitempty"`
	Source            string   `json:"source,omitempty"`
	RequestID         string   `json:"request_id,omitempty"`
}

type Engine struct {
	store  store.Store
	hermes hermes.Client
	cfg    *config.Config
	logger *slog.Logger

	catalogMu sync.RWMutex
	catalog   *welfare.Catalog
	loader    CatalogLoader
}

func New(s store.Store, h hermes.Client, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:  s,
		hermes: h,
		cfg:    cfg,
		logger: logger,
	}
}

// SetCatalog swaps the active catalog. Runs already in flight keep the
// catalog they started with.
func (e *Engine) SetCatalog(cat *welfare.Catalog) {
	e.catalogMu.Lock()
	e.catalog = cat
	e.catalogMu.Unlock()
	if cat != nil {
		catalogItems.Set(float64(cat.Len()))
	}
}

func (e *Engine) Catalog() *welfare.Catalog {
	e.catalogMu.RLock()
	defer e.catalogMu.RUnlock()
	return e.catalog
}

func (e *Engine) SetLoader(fn CatalogLoader) {
	e.catalogMu.Lock()
	e.loader = fn
	e.catalogMu.Unlock()
}

// ReloadCatalog rebuilds the catalog with the configured loader and checks
// the stakeholder weights against its schema before swapping it in.
func (e *Engine) ReloadCatalog(ctx context.Context) (*welfare.Catalog, error) {
	e.catalogMu.RLock()
	loader := e.loader
	e.catalogMu.RUnlock()
	if loader == nil {
		return nil, errors.New("no catalog loader configured")
	}

	cat, err := loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	ss, err := welfare.BuildStakeholders(e.cfg.Stakeholders)
	if err != nil {
		return nil, err
	}
	if err := ss.CheckSchema(cat); err != nil {
		return nil, err
	}

	e.SetCatalog(cat)
	e.logger.Info("catalog loaded", "items", cat.Len(), "schema", cat.Schema())
	e.publish(hermes.SubjectCatalogReloaded(), hermes.CatalogReloadedEvent{
		Items:     cat.Len(),
		Schema:    cat.Schema(),
		Timestamp: time.Now().UTC(),
	})
	return cat, nil
}

type params struct {
	slateSize int
	poolSize  int
	seed      uint64
	fairness  welfare.FairnessPolicy
}

func (e *Engine) resolve(req RunRequest) (params, error) {
	p := params{
		slateSize: e.cfg.Selection.SlateSize,
		poolSize:  e.cfg.Selection.PoolSize,
		seed:      e.cfg.Selection.Seed,
		fairness:  e.cfg.Fairness(),
	}
	if req.SlateSize != 0 {
		p.slateSize = req.SlateSize
	}
	if req.PoolSize != 0 {
		p.poolSize = req.PoolSize
	}
	if req.Seed != nil {
		p.seed = *req.Seed
	}
	if req.FairnessThreshold != nil {
		p.fairness.Threshold = *req.FairnessThreshold
	}
	if req.PenaltyWeight != nil {
		p.fairness.PenaltyWeight = *req.PenaltyWeight
	}

	maxPool, maxSlate := e.Limits()
	if p.poolSize < 0 || p.poolSize > maxPool {
		return params{}, fmt.Errorf("%w: pool size %d, limit %d", ErrOutOfRange, p.poolSize, maxPool)
	}
	if p.slateSize < 0 || p.slateSize > maxSlate {
		return params{}, fmt.Errorf("%w: slate size %d, limit %d", ErrOutOfRange, p.slateSize, maxSlate)
	}
	return p, nil
}

// Limits returns the largest pool and slate a single run may request.
func (e *Engine) Limits() (maxPool, maxSlate int) {
	maxPool, maxSlate = e.cfg.Selection.MaxPoolSize, e.cfg.Selection.MaxSlateSize
	if maxPool <= 0 {
		maxPool = DefaultMaxPoolSize
	}
	if maxSlate <= 0 {
		maxSlate = DefaultMaxSlateSize
	}
	return maxPool, maxSlate
}

// Run generates a candidate pool, selects the welfare-optimal slate, builds
// the greedy baseline for comparison and records the run.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*store.Run, error) {
	start := time.Now()
	run, err := e.run(ctx, req, start)
	runDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	runsTotal.WithLabelValues("ok").Inc()
	return run, nil
}

func (e *Engine) run(ctx context.Context, req RunRequest, start time.Time) (*store.Run, error) {
	cat := e.Catalog()
	if cat == nil {
		return nil, ErrNoCatalog
	}
	p, err := e.resolve(req)
	if err != nil {
		return nil, err
	}

	ss, err := welfare.BuildStakeholders(e.cfg.Stakeholders)
	if err != nil {
		return nil, err
	}
	ev, err := welfare.NewEvaluator(ss, p.fairness)
	if err != nil {
		return nil, err
	}

	pool, err := welfare.Generate(cat, p.slateSize, p.poolSize, p.seed)
	if err != nil {
		return nil, fmt.Errorf("generate candidates: %w", err)
	}
	sel, err := welfare.NewSelector(ev, e.cfg.Selection.Workers, e.logger).Select(ctx, pool, cat)
	if err != nil {
		return nil, fmt.Errorf("select slate: %w", err)
	}
	candidatesEvaluated.Add(float64(sel.Evaluated))
	candidatesPenalized.Add(float64(sel.Penalized))

	greedySlate, err := welfare.SelectGreedySlate(cat, p.slateSize, e.cfg.Selection.RelevanceAttribute)
	if err != nil {
		return nil, fmt.Errorf("greedy baseline: %w", err)
	}
	greedyResult, err := ev.Evaluate(greedySlate, cat)
	if err != nil {
		return nil, fmt.Errorf("evaluate greedy baseline: %w", err)
	}

	eqOutcome, err := outcome(store.StrategyEquilibrium, sel.Slate, sel.Result, cat)
	if err != nil {
		return nil, err
	}
	greedyOutcome, err := outcome(store.StrategyGreedy, greedySlate, greedyResult, cat)
	if err != nil {
		return nil, err
	}

	source := req.Source
	if source == "" {
		source = "api"
	}
	run := &store.Run{
		Seed:              p.seed,
		SlateSize:         p.slateSize,
		PoolSize:          p.poolSize,
		FairnessThreshold: p.fairness.Threshold,
		PenaltyWeight:     p.fairness.PenaltyWeight,
		CatalogSize:       cat.Len(),
		Stakeholders:      e.cfg.Stakeholders,
		Equilibrium:       eqOutcome,
		Greedy:            greedyOutcome,
		WinnerIndex:       sel.Index,
		Penalized:         sel.Penalized,
		DurationMs:        time.Since(start).Milliseconds(),
		Source:            source,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("store run: %w", err)
	}

	recordOutcome(run.Equilibrium)
	recordOutcome(run.Greedy)

	e.logger.Info("run completed",
		"run_id", run.ID,
		"pool_size", p.poolSize,
		"slate_size", p.slateSize,
		"seed", p.seed,
		"score", run.Equilibrium.Result.Score,
		"penalty", run.Equilibrium.Result.Penalty,
		"greedy_score", run.Greedy.Result.Score,
		"penalized", sel.Penalized,
		"duration_ms", run.DurationMs,
	)

	e.publish(hermes.SubjectRunCompleted(run.ID.String()), hermes.RunCompletedEvent{
		RunID:       run.ID.String(),
		RequestID:   req.RequestID,
		Slate:       run.Equilibrium.Slate,
		Score:       run.Equilibrium.Result.Score,
		Penalty:     run.Equilibrium.Result.Penalty,
		Utilities:   run.Equilibrium.Result.UtilityMap(),
		GreedySlate: run.Greedy.Slate,
		GreedyScore: run.Greedy.Result.Score,
		DurationMs:  run.DurationMs,
		Timestamp:   run.CreatedAt,
	})
	return run, nil
}

func outcome(strategy string, slate welfare.Slate, res welfare.Result, cat *welfare.Catalog) (store.Outcome, error) {
	div, err := welfare.Diversity(slate, cat)
	if err != nil {
		return store.Outcome{}, fmt.Errorf("%s diversity: %w", strategy, err)
	}
	o := store.Outcome{
		Strategy:  strategy,
		Slate:     slate,
		Result:    res,
		Diversity: div,
	}
	for _, id := range slate {
		if it, ok := cat.Item(id); ok && it.Title != "" {
			o.Titles = append(o.Titles, it.Title)
		}
	}
	if len(o.Titles) != len(slate) {
		o.Titles = nil
	}
	return o, nil
}

func recordOutcome(o store.Outcome) {
	lastScore.WithLabelValues(o.Strategy).Set(o.Result.Score)
	for _, u := range o.Result.Utilities {
		lastUtility.WithLabelValues(o.Strategy, u.Name).Set(u.Utility)
	}
}

func (e *Engine) publish(subject string, data interface{}) {
	if e.hermes == nil {
		return
	}
	if err := e.hermes.Publish(subject, data); err != nil {
		e.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// SetupSubscriptions runs a selection for every request published on
// equilibrium.run.request.
func (e *Engine) SetupSubscriptions() {
	if e.hermes == nil {
		return
	}
	if err := e.hermes.Subscribe(hermes.SubjectRunRequest, e.handleRunRequest); err != nil {
		e.logger.Error("failed to subscribe", "subject", hermes.SubjectRunRequest, "error", err)
	}
}

func (e *Engine) handleRunRequest(_ string, data []byte) {
	var evt hermes.RunRequestEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		e.logger.Warn("invalid run request", "error", err)
		return
	}
	source := evt.Source
	if source == "" {
		source = "nats"
	}
	req := RunRequest{
		SlateSize:         evt.SlateSize,
		PoolSize:          evt.PoolSize,
		Seed:              evt.Seed,
		FairnessThreshold: evt.FairnessThreshold,
		PenaltyWeight:     evt.PenaltyWeight,
		Source:            source,
		RequestID:         evt.RequestID,
	}
	if _, err := e.Run(context.Background(), req); err != nil {
		e.logger.Warn("requested run failed", "request_id", evt.RequestID, "error", err)
		id := evt.RequestID
		if id == "" {
			id = "anonymous"
		}
		e.publish(hermes.SubjectRunFailed(id), hermes.RunFailedEvent{RequestID: evt.RequestID, Error: err.Error()})
	}
}
