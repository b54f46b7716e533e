package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

const (
	StrategyEquilibrium = "equilibrium"
	StrategyGreedy      = "greedy"
)

// Outcome is one strategy's chosen slate and how it scored.
type Outcome struct {
	Strategy  string         `json:"strategy"`
	Slate     welfare.Slate  `json:"slate"`
	Titles    []string       `json:"titles,omitempty"`
	Result    welfare.Result `json:"result"`
	Diversity float64        `json:"diversity"`
}

// Run records a single selection run and its greedy comparison.
type Run struct {
	ID uuid.UUID `json:"run_id"`

	// Parameters
	Seed              uint64                       `json:"seed"`
	SlateSize         int                          `json:"slate_size"`
	PoolSize          int                          `json:"pool_size"`
	FairnessThreshold float64                      `json:"fairness_threshold"`
	PenaltyWeight     float64                      `json:"penalty_weight"`
	CatalogSize       int                          `json:"catalog_size"`
	Stakeholders      []welfare.StakeholderWeights `json:"stakeholders"`

	// Outcomes
	Equilibrium Outcome `json:"equilibrium"`
	Greedy      Outcome `json:"greedy"`
	WinnerIndex int     `json:"winner_index"`
	Penalized   int     `json:"penalized"`

	DurationMs int64     `json:"duration_ms"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

type RunFilter struct {
	Limit  int
	Offset int
}

type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	Close() error
}

// MemoryStore keeps runs in process memory. Used when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[uuid.UUID]*Run)}
}

func (m *MemoryStore) CreateRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = uuid.New()
	run.CreatedAt = time.Now().UTC()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// ListRuns returns runs newest first.
func (m *MemoryStore) ListRuns(_ context.Context, filter RunFilter) ([]*Run, error) {
	m.mu.RLock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		cp := *r
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*Run{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
