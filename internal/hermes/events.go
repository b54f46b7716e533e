package hermes

import "time"

// RunRequestEvent asks the engine to run a selection. Zero fields fall back
// to configuration.
type RunRequestEvent struct {
	RequestID         string   `json:"request_id,omitempty"`
	SlateSize         int      `json:"slate_size,omitempty"`
	PoolSize          int      `json:"pool_size,omitempty"`
	Seed              *uint64  `json:"seed,omitempty"`
	FairnessThreshold *float64 `json:"fairness_threshold,omitempty"`
	PenaltyWeight     *float64 `json:"penalty_weight,omitempty"`
	Source            string   `json:"source,omitempty"`
}

type RunCompletedEvent struct {
	RunID       string             `json:"run_id"`
	RequestID   string             `json:"request_id,omitempty"`
	Slate       []string           `json:"slate"`
	Score       float64            `json:"score"`
	Penalty     float64            `json:"penalty"`
	Utilities   map[string]float64 `json:"utilities"`
	GreedySlate []string           `json:"greedy_slate"`
	GreedyScore float64            `json:"greedy_score"`
	DurationMs  int64              `json:"duration_ms"`
	Timestamp   time.Time          `json:"timestamp"`
}

type RunFailedEvent struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

type CatalogReloadedEvent struct {
	Items     int       `json:"items"`
	Schema    []string  `json:"schema"`
	Timestamp time.Time `json:"timestamp"`
}
