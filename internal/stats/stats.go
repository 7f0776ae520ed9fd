// Package stats provides streaming summary statistics.
package stats

import "math"

// Calculator accumulates count, mean and sum of squared deviations using
// Welford's online algorithm. The zero value is ready to use.
type Calculator struct {
	count int
	mean  float64
	m2    float64
}

// AddValue folds a new sample into the running statistics.
func (c *Calculator) AddValue(v float64) {
	c.count++
	delta := v - c.mean
	c.mean += delta / float64(c.count)
	c.m2 += delta * (v - c.mean)
}

// Reset clears all accumulated samples.
func (c *Calculator) Reset() {
	*c = Calculator{}
}

func (c *Calculator) Count() int { return c.count }

// Mean returns 0 for an empty calculator.
func (c *Calculator) Mean() float64 { return c.mean }

// Variance is the sample variance, 0 with fewer than two samples.
func (c *Calculator) Variance() float64 {
	if c.count < 2 {
		return 0
	}
	return c.m2 / float64(c.count-1)
}

// StandardDeviation is the sample standard deviation, 0 with fewer than two samples.
func (c *Calculator) StandardDeviation() float64 {
	return math.Sqrt(c.Variance())
}

func (c *Calculator) PopulationVariance() float64 {
	if c.count == 0 {
		return 0
	}
	return c.m2 / float64(c.count)
}

func (c *Calculator) PopulationStandardDeviation() float64 {
	return math.Sqrt(c.PopulationVariance())
}
