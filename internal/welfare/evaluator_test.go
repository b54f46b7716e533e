package welfare

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestEvaluatePenalizedSlate(t *testing.T) {
	cat := abcCatalog(t)
	r, err := Evaluate(Slate{"A", "B"}, cat, userSociety(), 0.5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if u, _ := r.Utility("User"); !approx(u, 0.75) {
		t.Errorf("User utility: got %f, want 0.75", u)
	}
	if u, _ := r.Utility("Society"); !approx(u, -0.9) {
		t.Errorf("Society utility: got %f, want -0.9", u)
	}
	if !approx(r.Total, -0.15) {
		t.Errorf("total: got %f, want -0.15", r.Total)
	}
	if !approx(r.Average, -0.075) {
		t.Errorf("average: got %f, want -0.075", r.Average)
	}
	if !approx(r.Threshold, -0.0375) {
		t.Errorf("threshold: got %f, want -0.0375", r.Threshold)
	}
	// Society is the only stakeholder under -0.0375.
	if !approx(r.Penalty, 0.8625) {
		t.Errorf("penalty: got %f, want 0.8625", r.Penalty)
	}
	if r.Score >= r.Total {
		t.Errorf("expected score below total, got score %f total %f", r.Score, r.Total)
	}
	if !approx(r.Score, r.Total-r.Penalty) {
		t.Errorf("score %f != total - penalty %f", r.Score, r.Total-r.Penalty)
	}
	if r.Utilities[0].BelowThreshold || !r.Utilities[1].BelowThreshold {
		t.Errorf("unexpected below-threshold flags: %+v", r.Utilities)
	}
}

func TestPenaltyZeroWhenAllAtThreshold(t *testing.T) {
	cat, err := NewCatalog([]Item{
		{ID: "x", Attributes: map[string]float64{"relevance": 0.8, "risk": -0.6}},
		{ID: "y", Attributes: map[string]float64{"relevance": 0.6, "risk": -0.8}},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	ss := Stakeholders{
		NewStakeholderUtility("User", map[string]float64{"relevance": 1}),
		NewStakeholderUtility("Society", map[string]float64{"risk": -1}),
	}
	for _, threshold := range []float64{0, 0.5, 0.99, 1.0} {
		t.Run(fmt.Sprintf("threshold %.2f", threshold), func(t *testing.T) {
			r, err := Evaluate(Slate{"x", "y"}, cat, ss, threshold)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if r.Penalty != 0 {
				t.Errorf("expected zero penalty, got %f", r.Penalty)
			}
			if r.Score != r.Total {
				t.Errorf("expected score == total, got %f vs %f", r.Score, r.Total)
			}
		})
	}
}

func TestPenaltyStrictlyIncreasingWithShortfall(t *testing.T) {
	risks := []float64{0.1, 0.3, 0.6, 0.9}
	items := make([]Item, len(risks))
	for i, r := range risks {
		items[i] = Item{ID: fmt.Sprintf("r%d", i), Attributes: map[string]float64{"relevance": 1.0, "risk": r}}
	}
	cat, err := NewCatalog(items)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	ss := Stakeholders{
		NewStakeholderUtility("User", map[string]float64{"relevance": 1}),
		NewStakeholderUtility("Society", map[string]float64{"risk": -1}),
	}

	prev := 0.0
	for i := range risks {
		r, err := Evaluate(Slate{items[i].ID}, cat, ss, 0.5)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if r.Penalty <= prev {
			t.Errorf("risk %.1f: penalty %f not above previous %f", risks[i], r.Penalty, prev)
		}
		prev = r.Penalty
	}
}

func TestPenaltySumsShortfalls(t *testing.T) {
	cat, err := NewCatalog([]Item{
		{ID: "x", Attributes: map[string]float64{"a": 10, "b": 1, "c": 1}},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	ss := Stakeholders{
		NewStakeholderUtility("A", map[string]float64{"a": 1}),
		NewStakeholderUtility("B", map[string]float64{"b": 1}),
		NewStakeholderUtility("C", map[string]float64{"c": 1}),
	}
	e, err := NewEvaluator(ss, FairnessPolicy{Threshold: 0.5, PenaltyWeight: 2})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	r, err := e.Evaluate(Slate{"x"}, cat)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	// avg = 4, threshold = 2, B and C each short by 1, weight 2.
	if !approx(r.Penalty, 4) {
		t.Errorf("expected penalty 4, got %f", r.Penalty)
	}
	if !approx(r.Score, 8) {
		t.Errorf("expected score 8, got %f", r.Score)
	}
}

func TestTotalMonotonic(t *testing.T) {
	cat := numberedCatalog(t, 20)
	ss, err := BuildStakeholders([]StakeholderWeights{
		{Name: "User", Weights: map[string]float64{"relevance": 1}},
		{Name: "Platform", Weights: map[string]float64{"engagement": 1}},
	})
	if err != nil {
		t.Fatalf("BuildStakeholders: %v", err)
	}
	pool, err := Generate(cat, 3, 60, 11)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	results := make([]Result, len(pool))
	for i, s := range pool {
		if results[i], err = Evaluate(s, cat, ss, 0.4); err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
	}
	for i := range results {
		for j := range results {
			dominates := true
			for k := range results[i].Utilities {
				if results[i].Utilities[k].Utility < results[j].Utilities[k].Utility {
					dominates = false
					break
				}
			}
			if dominates && results[i].Total < results[j].Total {
				t.Fatalf("slate %d dominates %d but total %f < %f", i, j, results[i].Total, results[j].Total)
			}
		}
	}
}

func TestEvaluateRejectsBadSlates(t *testing.T) {
	cat := abcCatalog(t)
	tests := []struct {
		name  string
		slate Slate
		want  error
	}{
		{"empty", Slate{}, ErrEmptySlate},
		{"duplicate", Slate{"A", "A"}, ErrDuplicateItem},
		{"unknown", Slate{"A", "Z"}, ErrUnknownItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Evaluate(tt.slate, cat, userSociety(), 0.5); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFairnessPolicyValidate(t *testing.T) {
	if err := DefaultFairness().Validate(); err != nil {
		t.Errorf("default fairness invalid: %v", err)
	}
	if err := (FairnessPolicy{Threshold: 0.4, PenaltyWeight: 0}).Validate(); !errors.Is(err, ErrInvalidFairness) {
		t.Errorf("expected ErrInvalidFairness for zero penalty weight, got %v", err)
	}
	if err := (FairnessPolicy{Threshold: math.NaN(), PenaltyWeight: 1}).Validate(); !errors.Is(err, ErrInvalidFairness) {
		t.Errorf("expected ErrInvalidFairness for NaN threshold, got %v", err)
	}
}
