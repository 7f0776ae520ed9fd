package autobone

import "github.com/trackfit/autobone/pkg/core"

// Epoch reports the state of the optimization after one pass over the data.
// Epoch -1 is the initial error before any adjustment.
type Epoch struct {
	Epoch        int
	AdjustRate   float64
	Error        float64
	ErrorStdDev  float64
	ConfigValues map[core.SkeletonConfigOffset]float64
}

// Results is the outcome of processing one recording.
type Results struct {
	FinalHeight      float64
	TargetHeight     float64
	HeightDifference float64
	ConfigValues     map[core.SkeletonConfigOffset]float64
	Adjustments      []TrackerAdjustment
}

func copyOffsets(in map[core.SkeletonConfigOffset]float64) map[core.SkeletonConfigOffset]float64 {
	out := make(map[core.SkeletonConfigOffset]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
