package autobone

import "math"

// AdjustPolicy decides how fast and in which direction offsets move.
type AdjustPolicy interface {
	// Rate returns the adjust rate for the given epoch.
	Rate(epoch int) float64
	// Magnitude returns the step size for one offset.
	Magnitude(rate, err, slideDot float64) float64
	// PreferredSign returns the direction tried first, +1 or -1.
	PreferredSign(slideDot float64) float64
}

// DecayPolicy decays the rate geometrically and scales steps by the error
// and by how strongly the offset correlates with the slide.
type DecayPolicy struct {
	InitialRate    float64
	RateMultiplier float64
}

// NewDecayPolicy builds a DecayPolicy from cfg.
func NewDecayPolicy(cfg Config) DecayPolicy {
	return DecayPolicy{
		InitialRate:    cfg.InitialAdjustRate,
		RateMultiplier: cfg.AdjustRateMultiplier,
	}
}

func (p DecayPolicy) Rate(epoch int) float64 {
	if epoch < 0 {
		epoch = 0
	}
	return p.InitialRate * math.Pow(p.RateMultiplier, float64(epoch))
}

func (p DecayPolicy) Magnitude(rate, err, slideDot float64) float64 {
	return rate * err * (1 + math.Abs(slideDot))
}

// PreferredSign shortens bones that move along the slide and lengthens
// the rest.
func (p DecayPolicy) PreferredSign(slideDot float64) float64 {
	if slideDot > 0 {
		return -1
	}
	return 1
}
