package ml

const DefaultRate = 0.2

type RatePoint struct {
	Step int
	Rate float64
}

// Schedule is a piecewise constant learning rate, ordered by Step.
type Schedule []RatePoint

// Rate returns the rate of the last point whose Step <= step.
func (s Schedule) Rate(step int) float64 {
	var rate = DefaultRate
	for _, p := range s {
		if p.Step <= step {
			rate = p.Rate
		}
	}
	return rate
}
