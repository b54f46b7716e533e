package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Equilibrium/internal/store"
	"github.com/MikeSquared-Agency/Equilibrium/internal/welfare"
)

type ExplainHandler struct {
	store store.Store
}

func NewExplainHandler(s store.Store) *ExplainHandler {
	return &ExplainHandler{store: s}
}

type StakeholderBreakdown struct {
	Name           string             `json:"name"`
	Weights        map[string]float64 `json:"weights,omitempty"`
	Utility        float64            `json:"utility"`
	Shortfall      float64            `json:"shortfall"`
	BelowThreshold bool               `json:"below_threshold"`
}

type StrategyBreakdown struct {
	Slate        welfare.Slate          `json:"slate"`
	Titles       []string               `json:"titles,omitempty"`
	Total        float64                `json:"total"`
	Average      float64                `json:"average"`
	Threshold    float64                `json:"threshold"`
	Penalty      float64                `json:"penalty"`
	Score        float64                `json:"score"`
	Diversity    float64                `json:"diversity"`
	Stakeholders []StakeholderBreakdown `json:"stakeholders"`
}

type Explanation struct {
	RunID             uuid.UUID         `json:"run_id"`
	FairnessThreshold float64           `json:"fairness_threshold"`
	PenaltyWeight     float64           `json:"penalty_weight"`
	PoolSize          int               `json:"pool_size"`
	WinnerIndex       int               `json:"winner_index"`
	Penalized         int               `json:"penalized"`
	Equilibrium       StrategyBreakdown `json:"equilibrium"`
	Greedy            StrategyBreakdown `json:"greedy"`
	ScoreDelta        float64           `json:"score_delta"`
	// Stakeholders the greedy slate leaves below the fairness line that the
	// equilibrium slate does not.
	Protected []string `json:"protected"`
}

// Explain returns the per-stakeholder welfare breakdown of a run.
// GET /api/v1/runs/{id}/explain
func (h *ExplainHandler) Explain(w http.ResponseWriter, r *http.Request) {
	run, ok := loadRun(w, r, h.store)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, explainRun(run))
}

func explainRun(run *store.Run) Explanation {
	weights := make(map[string]map[string]float64, len(run.Stakeholders))
	for _, s := range run.Stakeholders {
		weights[s.Name] = s.Weights
	}

	exp := Explanation{
		RunID:             run.ID,
		FairnessThreshold: run.FairnessThreshold,
		PenaltyWeight:     run.PenaltyWeight,
		PoolSize:          run.PoolSize,
		WinnerIndex:       run.WinnerIndex,
		Penalized:         run.Penalized,
		Equilibrium:       breakdown(run.Equilibrium, weights),
		Greedy:            breakdown(run.Greedy, weights),
		ScoreDelta:        run.Equilibrium.Result.Score - run.Greedy.Result.Score,
		Protected:         []string{},
	}

	below := make(map[string]bool)
	for _, u := range run.Equilibrium.Result.Utilities {
		below[u.Name] = u.BelowThreshold
	}
	for _, u := range run.Greedy.Result.Utilities {
		if u.BelowThreshold && !below[u.Name] {
			exp.Protected = append(exp.Protected, u.Name)
		}
	}
	return exp
}

func breakdown(o store.Outcome, weights map[string]map[string]float64) StrategyBreakdown {
	b := StrategyBreakdown{
		Slate:        o.Slate,
		Titles:       o.Titles,
		Total:        o.Result.Total,
		Average:      o.Result.Average,
		Threshold:    o.Result.Threshold,
		Penalty:      o.Result.Penalty,
		Score:        o.Result.Score,
		Diversity:    o.Diversity,
		Stakeholders: make([]StakeholderBreakdown, 0, len(o.Result.Utilities)),
	}
	for _, u := range o.Result.Utilities {
		b.Stakeholders = append(b.Stakeholders, StakeholderBreakdown{
			Name:           u.Name,
			Weights:        weights[u.Name],
			Utility:        u.Utility,
			Shortfall:      u.Shortfall,
			BelowThreshold: u.BelowThreshold,
		})
	}
	return b
}
