package welfare

import (
	"fmt"
	"math"
)

// UtilityResult captures one stakeholder's utility and its fairness shortfall.
type UtilityResult struct {
	Name           string  `json:"name"`
	Utility        float64 `json:"utility"`
	Shortfall      float64 `json:"shortfall"`
	BelowThreshold bool    `json:"below_threshold"`
}

// Result is the welfare breakdown of a single slate.
type Result struct {
	Utilities []UtilityResult `json:"utilities"`
	Total     float64         `json:"total"`
	Average   float64         `json:"average"`
	Threshold float64         `json:"threshold"`
	Penalty   float64         `json:"penalty"`
	Score     float64         `json:"score"`
}

// Utility returns the named stakeholder's utility.
func (r Result) Utility(name string) (float64, bool) {
	for _, u := range r.Utilities {
		if u.Name == name {
			return u.Utility, true
		}
	}
	return 0, false
}

// UtilityMap returns stakeholder name → utility.
func (r Result) UtilityMap() map[string]float64 {
	out := make(map[string]float64, len(r.Utilities))
	for _, u := range r.Utilities {
		out[u.Name] = u.Utility
	}
	return out
}

// FairnessPolicy configures the Rawlsian penalty. A stakeholder falls short
// when its utility is below Threshold × the group average; the penalty is
// PenaltyWeight × the summed shortfalls.
type FairnessPolicy struct {
	Threshold     float64
	PenaltyWeight float64
}

// DefaultFairness returns a 0.4 threshold with unit penalty weight.
func DefaultFairness() FairnessPolicy {
	return FairnessPolicy{Threshold: 0.4, PenaltyWeight: 1.0}
}

// Validate rejects non-finite values and a non-positive penalty weight.
func (p FairnessPolicy) Validate() error {
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return fmt.Errorf("%w: threshold must be finite, got %f", ErrInvalidFairness, p.Threshold)
	}
	if !(p.PenaltyWeight > 0) || math.IsInf(p.PenaltyWeight, 0) {
		return fmt.Errorf("%w: penalty weight must be positive and finite, got %f", ErrInvalidFairness, p.PenaltyWeight)
	}
	return nil
}

// Evaluator scores slates under a fixed stakeholder set and fairness policy.
type Evaluator struct {
	stakeholders Stakeholders
	fairness     FairnessPolicy
}

// NewEvaluator validates and snapshots the stakeholder set.
func NewEvaluator(ss Stakeholders, fairness FairnessPolicy) (*Evaluator, error) {
	if err := ss.Validate(); err != nil {
		return nil, err
	}
	if err := fairness.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{
		stakeholders: append(Stakeholders(nil), ss...),
		fairness:     fairness,
	}, nil
}

// Stakeholders returns the stakeholder set the evaluator scores with.
func (e *Evaluator) Stakeholders() Stakeholders {
	return append(Stakeholders(nil), e.stakeholders...)
}

// Fairness returns the evaluator's fairness policy.
func (e *Evaluator) Fairness() FairnessPolicy { return e.fairness }

// Evaluate computes every stakeholder's utility for the slate, sums them and
// subtracts the Rawlsian penalty.
func (e *Evaluator) Evaluate(slate Slate, cat *Catalog) (Result, error) {
	if err := slate.Validate(cat); err != nil {
		return Result{}, err
	}

	res := Result{Utilities: make([]UtilityResult, len(e.stakeholders))}
	for i, s := range e.stakeholders {
		u, err := s.Utility(slate, cat)
		if err != nil {
			return Result{}, err
		}
		res.Utilities[i] = UtilityResult{Name: s.Name(), Utility: u}
		res.Total += u
	}

	res.Average = res.Total / float64(len(e.stakeholders))
	res.Threshold = e.fairness.Threshold * res.Average

	var shortfall float64
	for i := range res.Utilities {
		u := &res.Utilities[i]
		if u.Utility < res.Threshold {
			u.BelowThreshold = true
			u.Shortfall = res.Threshold - u.Utility
			shortfall += u.Shortfall
		}
	}
	res.Penalty = e.fairness.PenaltyWeight * shortfall
	res.Score = res.Total - res.Penalty
	return res, nil
}

// Evaluate scores one slate with a unit penalty weight.
func Evaluate(slate Slate, cat *Catalog, ss Stakeholders, fairnessThreshold float64) (Result, error) {
	e, err := NewEvaluator(ss, FairnessPolicy{Threshold: fairnessThreshold, PenaltyWeight: 1.0})
	if err != nil {
		return Result{}, err
	}
	return e.Evaluate(slate, cat)
}
