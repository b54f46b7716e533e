package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/MikeSquared-Agency/Equilibrium/internal/engine"
	"github.com/MikeSquared-Agency/Equilibrium/internal/store"
	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

// MockStore implements store.Store for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateRun(ctx context.Context, run *store.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockStore) GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Run), args.Error(1)
}

func (m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Run), args.Error(1)
}

func (m *MockStore) Close() error { return nil }

// MockRunner implements Runner for testing
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, req engine.RunRequest) (*store.Run, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Run), args.Error(1)
}

func (m *MockRunner) Catalog() *welfare.Catalog {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*welfare.Catalog)
}

func (m *MockRunner) ReloadCatalog(ctx context.Context) (*welfare.Catalog, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*welfare.Catalog), args.Error(1)
}

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

func wrap(err error) error { return fmt.Errorf("select slate: %w", err) }

func (m *MockRunner) Limits() (int, int) {
	args := m.Called()
	return args.Int(0), args.Int(1)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListRunsDefaultsAndCapsLimit(t *testing.T) {
	mockStore := &MockStore{}
	handler := NewRunsHandler(mockStore, &MockRunner{})

	mockStore.On("ListRuns", mock.Anything, store.RunFilter{Limit: defaultListLimit}).Return(nil, nil).Once()
	mockStore.On("ListRuns", mock.Anything, store.RunFilter{Limit: maxListLimit, Offset: 5}).Return([]*store.Run{}, nil).Once()

	rr := httptest.NewRecorder()
	handler.List(rr, httptest.NewRequest("GET", "/api/v1/runs", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = httptest.NewRecorder()
	handler.List(rr, httptest.NewRequest("GET", "/api/v1/runs?limit=5000&offset=5", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	mockStore.AssertExpectations(t)
}

func TestListRunsStoreError(t *testing.T) {
	mockStore := &MockStore{}
	handler := NewRunsHandler(mockStore, &MockRunner{})
	mockStore.On("ListRuns", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	rr := httptest.NewRecorder()
	handler.List(rr, httptest.NewRequest("GET", "/api/v1/runs", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestGetRunStoreError(t *testing.T) {
	mockStore := &MockStore{}
	handler := NewRunsHandler(mockStore, &MockRunner{})
	id := uuid.New()
	mockStore.On("GetRun", mock.Anything, id).Return(nil, errors.New("timeout"))

	req := withURLParam(httptest.NewRequest("GET", "/api/v1/runs/"+id.String(), nil), "id", id.String())
	rr := httptest.NewRecorder()
	handler.Get(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	mockStore.AssertExpectations(t)
}

func TestCreateRunPassesOverrides(t *testing.T) {
	runner := &MockRunner{}
	handler := NewRunsHandler(&MockStore{}, runner)

	seed := uint64(11)
	want := engine.RunRequest{SlateSize: 3, Seed: &seed, Source: "api"}
	runner.On("Limits").Return(1000, 10)
	runner.On("Run", mock.Anything, want).Return(&store.Run{ID: uuid.New(), SlateSize: 3}, nil)

	body := `{"slate_size":3,"seed":11}`
	rr := httptest.NewRecorder()
	handler.Create(rr, httptest.NewRequest("POST", "/api/v1/runs", stringsReader(body)))

	assert.Equal(t, http.StatusCreated, rr.Code)
	runner.AssertExpectations(t)
}

func TestCreateRunRejectsOversizedRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"pool above limit", `{"pool_size":1099511627776}`},
		{"pool just above limit", `{"pool_size":1001}`},
		{"slate above limit", `{"slate_size":11}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockRunner{}
			runner.On("Limits").Return(1000, 10)
			handler := NewRunsHandler(&MockStore{}, runner)

			rr := httptest.NewRecorder()
			handler.Create(rr, httptest.NewRequest("POST", "/api/v1/runs", stringsReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusForError(engine.ErrNoCatalog))
	assert.Equal(t, http.StatusBadRequest, statusForError(fmt.Errorf("%w: pool size 5", engine.ErrOutOfRange)))
	assert.Equal(t, http.StatusBadRequest, statusForError(wrap(welfare.ErrInvalidAttribute)))
	assert.Equal(t, http.StatusBadRequest, statusForError(wrap(welfare.ErrUnknownAttribute)))
	assert.Equal(t, http.StatusBadRequest, statusForError(wrap(welfare.ErrInsufficientCatalog)))
	assert.Equal(t, http.StatusBadRequest, statusForError(wrap(welfare.ErrInvalidFairness)))
	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.New("store run: boom")))
}

func TestExplainProtectedStakeholders(t *testing.T) {
	run := &store.Run{
		ID:                uuid.New(),
		FairnessThreshold: 0.5,
		PenaltyWeight:     1,
		Stakeholders: []welfare.StakeholderWeights{
			{Name: "User", Weights: map[string]float64{"relevance": 1}},
			{Name: "Society", Weights: map[string]float64{"risk": -2}},
		},
		Equilibrium: store.Outcome{
			Slate: welfare.Slate{"A", "C"},
			Result: welfare.Result{
				Utilities: []welfare.UtilityResult{
					{Name: "User", Utility: 0.75},
					{Name: "Society", Utility: -0.1, Shortfall: 0.2625, BelowThreshold: true},
				},
				Total: 0.65, Average: 0.325, Threshold: 0.1625, Penalty: 0.2625, Score: 0.3875,
			},
		},
		Greedy: store.Outcome{
			Slate: welfare.Slate{"A", "B"},
			Result: welfare.Result{
				Utilities: []welfare.UtilityResult{
					{Name: "User", Utility: 0.75},
					{Name: "Society", Utility: -0.9, Shortfall: 0.8625, BelowThreshold: true},
				},
				Total: -0.15, Average: -0.075, Threshold: -0.0375, Penalty: 0.8625, Score: -1.0125,
			},
		},
	}

	exp := explainRun(run)
	assert.InDelta(t, 1.4, exp.ScoreDelta, 1e-9)
	assert.Empty(t, exp.Protected, "Society is below threshold under both slates")
	assert.Equal(t, map[string]float64{"risk": -2}, exp.Equilibrium.Stakeholders[1].Weights)

	run.Equilibrium.Result.Utilities[1] = welfare.UtilityResult{Name: "Society", Utility: 0.2}
	exp = explainRun(run)
	assert.Equal(t, []string{"Society"}, exp.Protected)
}

func TestCatalogUnavailable(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Catalog").Return(nil)
	handler := NewCatalogHandler(runner, testConfig())

	rr := httptest.NewRecorder()
	handler.Get(rr, httptest.NewRequest("GET", "/api/v1/catalog", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReloadCatalogLoaderError(t *testing.T) {
	runner := &MockRunner{}
	runner.On("ReloadCatalog", mock.Anything).Return(nil, errors.New("load catalog: open data/movielens/ratings.csv: no such file"))
	handler := NewAdminHandler(runner)

	rr := httptest.NewRecorder()
	handler.ReloadCatalog(rr, httptest.NewRequest("POST", "/api/v1/admin/catalog/reload", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	runner.AssertExpectations(t)
}
