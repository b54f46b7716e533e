package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Equilibrium/internal/config"
	"github.com/MikeSquared-Agency/Equilibrium/internal/hermes"
	"github.com/MikeSquared-Agency/Equilibrium/internal/store"
	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

type published struct {
	subject string
	data    interface{}
}

type mockHermes struct {
	mu       sync.Mutex
	events   []published
	handlers map[string]func(string, []byte)
}

func (m *mockHermes) Publish(subject string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, published{subject: subject, data: data})
	return nil
}

func (m *mockHermes) Subscribe(subject string, handler func(string, []byte)) error {
	if m.handlers == nil {
		m.handlers = make(map[string]func(string, []byte))
	}
	m.handlers[subject] = handler
	return nil
}

func (m *mockHermes) Close() {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Selection: config.SelectionConfig{
			SlateSize:          2,
			PoolSize:           20,
			Seed:               42,
			FairnessThreshold:  0.5,
			PenaltyWeight:      1.0,
			Workers:            2,
			RelevanceAttribute: "relevance",
		},
		Stakeholders: []welfare.StakeholderWeights{
			{Name: "User", Weights: map[string]float64{"relevance": 1.0}},
			{Name: "Society", Weights: map[string]float64{"risk": -2.0}},
		},
	}
}

func abcCatalog(t *testing.T) *welfare.Catalog {
	t.Helper()
	cat, err := welfare.NewCatalog([]welfare.Item{
		{ID: "A", Title: "Alpha", Genres: []string{"Drama"}, Attributes: map[string]float64{"relevance": 1.0, "risk": 0.0}},
		{ID: "B", Title: "Bravo", Genres: []string{"Drama"}, Attributes: map[string]float64{"relevance": 0.5, "risk": 0.9}},
		{ID: "C", Title: "Charlie", Genres: []string{"Comedy"}, Attributes: map[string]float64{"relevance": 0.5, "risk": 0.1}},
	})
	require.NoError(t, err)
	return cat
}

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore, *mockHermes) {
	t.Helper()
	ms := store.NewMemoryStore()
	mh := &mockHermes{}
	e := New(ms, mh, testConfig(), discardLogger())
	e.SetCatalog(abcCatalog(t))
	return e, ms, mh
}

func TestRunWithoutCatalog(t *testing.T) {
	e := New(store.NewMemoryStore(), nil, testConfig(), discardLogger())
	_, err := e.Run(context.Background(), RunRequest{})
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestRunSelectsAndPersists(t *testing.T) {
	e, ms, mh := newTestEngine(t)
	cat := e.Catalog()

	run, err := e.Run(context.Background(), RunRequest{})
	require.NoError(t, err)

	// Same seed and parameters reproduce the selection outside the engine.
	pool, err := welfare.Generate(cat, 2, 20, 42)
	require.NoError(t, err)
	ss, err := welfare.BuildStakeholders(testConfig().Stakeholders)
	require.NoError(t, err)
	wantSlate, wantResult, err := welfare.SelectOptimalSlate(pool, cat, ss, 0.5)
	require.NoError(t, err)

	assert.Equal(t, wantSlate, run.Equilibrium.Slate)
	assert.Equal(t, wantResult.Score, run.Equilibrium.Result.Score)
	assert.Equal(t, welfare.Slate{"A", "B"}, run.Greedy.Slate)
	assert.Equal(t, []string{"Alpha", "Bravo"}, run.Greedy.Titles)
	assert.Equal(t, 0.0, run.Greedy.Diversity)
	assert.Equal(t, 3, run.CatalogSize)
	assert.Equal(t, "api", run.Source)

	for _, s := range pool {
		if s.Sorted().Equal(welfare.Slate{"A", "C"}) {
			assert.Equal(t, welfare.Slate{"A", "C"}, run.Equilibrium.Slate.Sorted())
			assert.Greater(t, run.Equilibrium.Result.Score, run.Greedy.Result.Score)
			break
		}
	}

	stored, err := ms.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, run.Equilibrium.Slate, stored.Equilibrium.Slate)

	require.Len(t, mh.events, 1)
	assert.Equal(t, hermes.SubjectRunCompleted(run.ID.String()), mh.events[0].subject)
	evt, ok := mh.events[0].data.(hermes.RunCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, []string(run.Equilibrium.Slate), evt.Slate)
	assert.Contains(t, evt.Utilities, "Society")
}

func TestRunOverrides(t *testing.T) {
	e, _, _ := newTestEngine(t)
	seed := uint64(9)
	threshold := 0.0

	run, err := e.Run(context.Background(), RunRequest{SlateSize: 1, PoolSize: 5, Seed: &seed, FairnessThreshold: &threshold, Source: "cli"})
	require.NoError(t, err)
	assert.Equal(t, 1, run.SlateSize)
	assert.Equal(t, 5, run.PoolSize)
	assert.Equal(t, uint64(9), run.Seed)
	assert.Equal(t, 0.0, run.FairnessThreshold)
	assert.Equal(t, "cli", run.Source)
	assert.Len(t, run.Equilibrium.Slate, 1)
	assert.Equal(t, welfare.Slate{"A"}, run.Greedy.Slate)
}

func TestRunPropagatesWelfareErrors(t *testing.T) {
	e, _, mh := newTestEngine(t)

	_, err := e.Run(context.Background(), RunRequest{SlateSize: 4})
	assert.True(t, errors.Is(err, welfare.ErrInsufficientCatalog), "got %v", err)

	e.cfg.Stakeholders = append(e.cfg.Stakeholders, welfare.StakeholderWeights{
		Name: "Creator", Weights: map[string]float64{"exposure": 1},
	})
	_, err = e.Run(context.Background(), RunRequest{})
	assert.True(t, errors.Is(err, welfare.ErrUnknownAttribute), "got %v", err)
	assert.Empty(t, mh.events)
}

func TestRunRejectsOutOfRangeSizes(t *testing.T) {
	e, ms, _ := newTestEngine(t)

	_, err := e.Run(context.Background(), RunRequest{PoolSize: 1 << 40})
	assert.ErrorIs(t, err, ErrOutOfRange)

	e.cfg.Selection.MaxPoolSize = 50
	e.cfg.Selection.MaxSlateSize = 2
	_, err = e.Run(context.Background(), RunRequest{PoolSize: 51})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = e.Run(context.Background(), RunRequest{SlateSize: 3})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = e.Run(context.Background(), RunRequest{PoolSize: -1})
	assert.ErrorIs(t, err, ErrOutOfRange)

	run, err := e.Run(context.Background(), RunRequest{PoolSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 50, run.PoolSize)

	runs, err := ms.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestLimitsDefaults(t *testing.T) {
	e, _, _ := newTestEngine(t)
	maxPool, maxSlate := e.Limits()
	assert.Equal(t, DefaultMaxPoolSize, maxPool)
	assert.Equal(t, DefaultMaxSlateSize, maxSlate)
}

func TestRunRequestSubscriptionRejectsOversizedPool(t *testing.T) {
	e, ms, mh := newTestEngine(t)
	e.SetupSubscriptions()

	payload, err := json.Marshal(hermes.RunRequestEvent{RequestID: "big", PoolSize: 1 << 40})
	require.NoError(t, err)
	mh.handlers[hermes.SubjectRunRequest](hermes.SubjectRunRequest, payload)

	runs, err := ms.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	require.NotEmpty(t, mh.events)
	assert.Equal(t, hermes.SubjectRunFailed("big"), mh.events[len(mh.events)-1].subject)
}

func TestReloadCatalog(t *testing.T) {
	e, _, mh := newTestEngine(t)

	_, err := e.ReloadCatalog(context.Background())
	assert.Error(t, err, "no loader configured")

	e.SetLoader(func(context.Context) (*welfare.Catalog, error) {
		return welfare.NewCatalog([]welfare.Item{
			{ID: "x", Attributes: map[string]float64{"relevance": 1, "risk": 0}},
			{ID: "y", Attributes: map[string]float64{"relevance": 0, "risk": 1}},
		})
	})
	cat, err := e.ReloadCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
	assert.Same(t, cat, e.Catalog())
	require.Len(t, mh.events, 1)
	assert.Equal(t, hermes.SubjectCatalogReloaded(), mh.events[0].subject)

	// A catalog missing a weighted attribute is rejected and the old one kept.
	e.SetLoader(func(context.Context) (*welfare.Catalog, error) {
		return welfare.NewCatalog([]welfare.Item{{ID: "z", Attributes: map[string]float64{"relevance": 1}}})
	})
	_, err = e.ReloadCatalog(context.Background())
	assert.ErrorIs(t, err, welfare.ErrUnknownAttribute)
	assert.Same(t, cat, e.Catalog())
}

func TestRunRequestSubscription(t *testing.T) {
	e, ms, mh := newTestEngine(t)
	e.SetupSubscriptions()

	handler, ok := mh.handlers[hermes.SubjectRunRequest]
	require.True(t, ok)

	seed := uint64(3)
	payload, err := json.Marshal(hermes.RunRequestEvent{RequestID: "req-1", Seed: &seed})
	require.NoError(t, err)
	handler(hermes.SubjectRunRequest, payload)

	runs, err := ms.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "nats", runs[0].Source)
	assert.Equal(t, uint64(3), runs[0].Seed)

	// Failing requests publish a failure event.
	payload, _ = json.Marshal(hermes.RunRequestEvent{RequestID: "req-2", SlateSize: 10})
	handler(hermes.SubjectRunRequest, payload)
	last := mh.events[len(mh.events)-1]
	assert.Equal(t, hermes.SubjectRunFailed("req-2"), last.subject)
}
