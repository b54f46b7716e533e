package welfare

// Attribute names produced by the dataset loader.
const (
	AttrRelevance  = "relevance"
	AttrEngagement = "engagement"
	AttrExposure   = "exposure"
	AttrRisk       = "risk"
)

// StakeholderWeights is a configuration-level stakeholder definition.
type StakeholderWeights struct {
	Name    string             `yaml:"name" json:"name"`
	Weights map[string]float64 `yaml:"weights" json:"weights"`
}

// DefaultStakeholders returns the User/Creator/Platform/Society split.
func DefaultStakeholders() []StakeholderWeights {
	return []StakeholderWeights{
		{Name: "User", Weights: map[string]float64{AttrRelevance: 1.0}},
		{Name: "Creator", Weights: map[string]float64{AttrExposure: 1.0}},
		{Name: "Platform", Weights: map[string]float64{AttrEngagement: 0.7, AttrRelevance: 0.3}},
		{Name: "Society", Weights: map[string]float64{AttrRisk: -1.0, AttrExposure: 0.5}},
	}
}

// BuildStakeholders converts definitions into validated utilities.
func BuildStakeholders(defs []StakeholderWeights) (Stakeholders, error) {
	ss := make(Stakeholders, len(defs))
	for i, d := range defs {
		ss[i] = NewStakeholderUtility(d.Name, d.Weights)
	}
	if err := ss.Validate(); err != nil {
		return nil, err
	}
	return ss, nil
}
