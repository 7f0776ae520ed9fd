package autobone

import (
	"math"

	"github.com/trackfit/autobone/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrorFunc scores the current state of a step; lower is better.
type ErrorFunc interface {
	Error(s *Step) float64
}

// ErrorFuncFunc adapts a plain function to ErrorFunc.
type ErrorFuncFunc func(s *Step) float64

func (f ErrorFuncFunc) Error(s *Step) float64 { return f(s) }

// HeightError is the absolute distance to the target height.
func HeightError(s *Step) float64 {
	return math.Abs(s.HeightOffset())
}

// FootSlide returns the displacement of a computed foot tracker between
// the two skeletons.
func FootSlide(s *Step, role core.TrackerRole) r3.Vec {
	p1, ok1 := s.Skeleton1.ComputedTracker(role)
	p2, ok2 := s.Skeleton2.ComputedTracker(role)
	if !ok1 || !ok2 {
		return r3.Vec{}
	}
	return r3.Sub(p2, p1)
}

// SlideError is the mean foot slide distance of both feet.
func SlideError(s *Step) float64 {
	left := r3.Norm(FootSlide(s, core.TrackerRoleLeftFoot))
	right := r3.Norm(FootSlide(s, core.TrackerRoleRightFoot))
	return (left + right) / 2
}

// WeightedError sums component errors scaled by their weights. Zero
// weights are skipped.
type WeightedError []WeightedTerm

// WeightedTerm is one component of a WeightedError.
type WeightedTerm struct {
	Weight float64
	Func   ErrorFuncFunc
}

func (w WeightedError) Error(s *Step) float64 {
	var total float64
	for _, term := range w {
		if term.Weight == 0 {
			continue
		}
		total += term.Weight * term.Func(s)
	}
	return total
}

// DefaultErrorFunc combines height and slide error using the config factors.
func DefaultErrorFunc(cfg Config) ErrorFunc {
	return WeightedError{
		{Weight: cfg.HeightErrorFactor, Func: HeightError},
		{Weight: cfg.SlideErrorFactor, Func: SlideError},
	}
}
