package scoring

import (
	"fmt"
	"math"
)

// WeightSet defines the relative importance of each pairing factor.
// All weights must sum to 1.0 (±0.001 tolerance).
type WeightSet struct {
	Familiarity       float64
	RotationFairness  float64
	SpecialAirport    float64
	UpgradeMentorship float64
	DutyHealth        float64
}

// DefaultWeights returns the department's standard weight distribution.
func DefaultWeights() WeightSet {
	return WeightSet{
		Familiarity:       0.30,
		RotationFairness:  0.20,
		SpecialAirport:    0.20,
		UpgradeMentorship: 0.20,
		DutyHealth:        0.10,
	}
}

// Sum returns the total of all weights.
func (w WeightSet) Sum() float64 {
	return w.Familiarity + w.RotationFairness + w.SpecialAirport +
		w.UpgradeMentorship + w.DutyHealth
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w WeightSet) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range w.asList() {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}

func (w WeightSet) asList() []float64 {
	return []float64{
		w.Familiarity, w.RotationFairness, w.SpecialAirport,
		w.UpgradeMentorship, w.DutyHealth,
	}
}
