package cut

import "github.com/l3aro/go-udf-splitter/pkg/dfg"

// DefaultArgumentBonus is subtracted from the score of a cut that directly
// follows a formal argument's first use.
const DefaultArgumentBonus int64 = 50000

// CostModel estimates the cost of keeping a variable alive across a cut.
type CostModel struct {
	Sizes         map[dfg.TypeTag]int64 `yaml:"sizes" json:"sizes"`
	ArgumentBonus int64                 `yaml:"argument_bonus" json:"argument_bonus"`
}

// DefaultCostModel returns the built-in size estimates.
func DefaultCostModel() CostModel {
	return CostModel{
		Sizes: map[dfg.TypeTag]int64{
			dfg.TypeInt:       8,
			dfg.TypeFloat:     8,
			dfg.TypeNumeric:   8,
			dfg.TypeUnknown:   8,
			dfg.TypeStr:       20,
			dfg.TypeBool:      1,
			dfg.TypeList:      1000,
			dfg.TypeTuple:     1000,
			dfg.TypeDict:      5000,
			dfg.TypeSet:       5000,
			dfg.TypeSeries:    10000,
			dfg.TypeDataFrame: 100000,
		},
		ArgumentBonus: DefaultArgumentBonus,
	}
}

// Size returns the estimated size of a value of type t. Types missing from
// the model cost as much as unknown.
func (m CostModel) Size(t dfg.TypeTag) int64 {
	if s, ok := m.Sizes[t]; ok {
		return s
	}
	if s, ok := m.Sizes[dfg.TypeUnknown]; ok {
		return s
	}
	return 8
}

// CostOverlay is a partial cost model, as read from a configuration file.
// A nil ArgumentBonus keeps the base bonus; zero is a valid setting.
type CostOverlay struct {
	Sizes         map[dfg.TypeTag]int64 `yaml:"sizes" json:"sizes"`
	ArgumentBonus *int64                `yaml:"argument_bonus" json:"argument_bonus"`
}

// Merge overlays the settings present in o on m. Sizes are merged per type.
func (m CostModel) Merge(o CostOverlay) CostModel {
	out := CostModel{Sizes: make(map[dfg.TypeTag]int64, len(m.Sizes)), ArgumentBonus: m.ArgumentBonus}
	for k, v := range m.Sizes {
		out.Sizes[k] = v
	}
	for k, v := range o.Sizes {
		out.Sizes[k] = v
	}
	if o.ArgumentBonus != nil {
		out.ArgumentBonus = *o.ArgumentBonus
	}
	return out
}
