package welfare

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

type weightTerm struct {
	attribute string
	weight    float64
}

// StakeholderUtility scores a slate for one stakeholder as the mean, over the
// slate's items, of a weighted sum of item attributes.
type StakeholderUtility struct {
	name  string
	terms []weightTerm
}

// NewStakeholderUtility snapshots the weights; later changes to the map do not
// affect the utility.
func NewStakeholderUtility(name string, weights map[string]float64) StakeholderUtility {
	terms := make([]weightTerm, 0, len(weights))
	for attr, w := range weights {
		terms = append(terms, weightTerm{attribute: attr, weight: w})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].attribute < terms[j].attribute })
	return StakeholderUtility{name: name, terms: terms}
}

// Name returns the stakeholder name.
func (s StakeholderUtility) Name() string { return s.name }

// Weights returns a copy of the weight mapping.
func (s StakeholderUtility) Weights() map[string]float64 {
	out := make(map[string]float64, len(s.terms))
	for _, t := range s.terms {
		out[t.attribute] = t.weight
	}
	return out
}

// ItemUtility returns the weighted attribute sum for a single item.
func (s StakeholderUtility) ItemUtility(it Item) (float64, error) {
	var sum float64
	for _, t := range s.terms {
		v, ok := it.Attributes[t.attribute]
		if !ok {
			return 0, fmt.Errorf("%w: stakeholder %q weights %q, missing on item %q",
				ErrUnknownAttribute, s.name, t.attribute, it.ID)
		}
		sum += t.weight * v
	}
	return sum, nil
}

// Utility returns the mean per-item utility of the slate. Items are summed in
// ID order so the result does not depend on slate order.
func (s StakeholderUtility) Utility(slate Slate, cat *Catalog) (float64, error) {
	if len(slate) == 0 {
		return 0, fmt.Errorf("stakeholder %q: %w", s.name, ErrEmptySlate)
	}
	ordered := slate.Sorted()
	values := make([]float64, len(ordered))
	for i, id := range ordered {
		it, ok := cat.Item(id)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownItem, id)
		}
		v, err := s.ItemUtility(it)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	return stat.Mean(values, nil), nil
}

// Stakeholders is the fixed set of utilities a run is scored under.
type Stakeholders []StakeholderUtility

// Validate checks names and weights independent of any catalog.
func (ss Stakeholders) Validate() error {
	if len(ss) == 0 {
		return fmt.Errorf("%w: at least one stakeholder required", ErrInvalidStakeholders)
	}
	names := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		if s.name == "" {
			return fmt.Errorf("%w: stakeholder with empty name", ErrInvalidStakeholders)
		}
		if _, dup := names[s.name]; dup {
			return fmt.Errorf("%w: duplicate stakeholder %q", ErrInvalidStakeholders, s.name)
		}
		names[s.name] = struct{}{}
		for _, t := range s.terms {
			if math.IsNaN(t.weight) || math.IsInf(t.weight, 0) {
				return fmt.Errorf("%w: stakeholder %q has non-finite weight for %q",
					ErrInvalidStakeholders, s.name, t.attribute)
			}
		}
	}
	return nil
}

// CheckSchema fails with ErrUnknownAttribute when any weighted attribute is
// not carried by every catalog item.
func (ss Stakeholders) CheckSchema(cat *Catalog) error {
	for _, s := range ss {
		for _, t := range s.terms {
			if !cat.HasAttribute(t.attribute) {
				return fmt.Errorf("%w: stakeholder %q weights %q, not in catalog schema %v",
					ErrUnknownAttribute, s.name, t.attribute, cat.Schema())
			}
		}
	}
	return nil
}

// Names returns stakeholder names in definition order.
func (ss Stakeholders) Names() []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.name
	}
	return out
}
