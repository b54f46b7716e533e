package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Equilibrium/internal/engine"
	"github.com/MikeSquared-Agency/Equilibrium/internal/store"
	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Runner is the part of the engine the HTTP layer drives.
type Runner interface {
	Run(ctx context.Context, req engine.RunRequest) (*store.Run, error)
	Catalog() *welfare.Catalog
	ReloadCatalog(ctx context.Context) (*welfare.Catalog, error)
	Limits() (maxPool, maxSlate int)
}

type RunsHandler struct {
	store  store.Store
	runner Runner
}

func NewRunsHandler(s store.Store, rn Runner) *RunsHandler {
	return &RunsHandler{store: s, runner: rn}
}

type createRunRequest struct {
	SlateSize         int      `json:"slate_size"`
	PoolSize          int      `json:"pool_size"`
	Seed              *uint64  `json:"seed"`
	FairnessThreshold *float64 `json:"fairness_threshold"`
	PenaltyWeight     *float64 `json:"penalty_weight"`
}

// Create runs a selection. The body is optional; omitted fields use the
// configured defaults.
// POST /api/v1/runs
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SlateSize < 0 || req.PoolSize < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "slate_size and pool_size must not be negative"})
		return
	}
	maxPool, maxSlate := h.runner.Limits()
	if req.PoolSize > maxPool {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("pool_size must be <= %d", maxPool)})
		return
	}
	if req.SlateSize > maxSlate {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("slate_size must be <= %d", maxSlate)})
		return
	}

	run, err := h.runner.Run(r.Context(), engine.RunRequest{
		SlateSize:         req.SlateSize,
		PoolSize:          req.PoolSize,
		Seed:              req.Seed,
		FairnessThreshold: req.FairnessThreshold,
		PenaltyWeight:     req.PenaltyWeight,
		Source:            "api",
		RequestID:         r.Header.Get("X-Request-Id"),
	})
	if err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

// List returns recorded runs, newest first.
// GET /api/v1/runs?limit=&offset=
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Limit: defaultListLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		filter.Limit = min(n, maxListLimit)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		filter.Offset = n
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GET /api/v1/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, ok := loadRun(w, r, h.store)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// loadRun resolves the {id} URL parameter, writing the error response itself
// when the run cannot be returned.
func loadRun(w http.ResponseWriter, r *http.Request, s store.Store) (*store.Run, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return nil, false
	}
	run, err := s.GetRun(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return nil, false
	}
	return run, true
}

var badRequestErrors = []error{
	welfare.ErrUnknownAttribute,
	welfare.ErrEmptySlate,
	welfare.ErrInsufficientCatalog,
	welfare.ErrEmptyPool,
	welfare.ErrUnknownItem,
	welfare.ErrDuplicateItem,
	welfare.ErrInvalidSlateSize,
	welfare.ErrInvalidStakeholders,
	welfare.ErrInvalidFairness,
	welfare.ErrInvalidAttribute,
}

func statusForError(err error) int {
	if errors.Is(err, engine.ErrNoCatalog) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, engine.ErrOutOfRange) {
		return http.StatusBadRequest
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
