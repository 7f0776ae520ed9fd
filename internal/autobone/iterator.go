package autobone

import "math/rand"

// CursorPair is a pair of frame indices compared by the error function.
type CursorPair struct {
	Cursor1 int
	Cursor2 int
}

// FrameIterator yields cursor pairs separated by every distance in
// [MinDistance, MaxDistance].
type FrameIterator struct {
	FrameCount  int
	MinDistance int
	MaxDistance int
	Increment   int
	Randomize   bool
	rng         *rand.Rand
}

// NewFrameIterator builds an iterator from cfg over frameCount frames.
func NewFrameIterator(cfg Config, frameCount int) *FrameIterator {
	it := &FrameIterator{
		FrameCount:  frameCount,
		MinDistance: max(cfg.MinDataDistance, 1),
		MaxDistance: cfg.MaxDataDistance,
		Increment:   max(cfg.CursorIncrement, 1),
		Randomize:   cfg.RandomizeFrameOrder,
		rng:         rand.New(rand.NewSource(cfg.RandomSeed)),
	}
	if it.MaxDistance < it.MinDistance {
		it.MaxDistance = it.MinDistance
	}
	return it
}

// HasPairs reports whether at least one cursor pair fits in the recording.
func (it *FrameIterator) HasPairs() bool {
	return it.FrameCount > it.MinDistance
}

// Pairs returns all cursor pairs for one epoch. Each call reshuffles when
// randomization is enabled.
func (it *FrameIterator) Pairs() []CursorPair {
	var pairs []CursorPair
	for d := it.MinDistance; d <= it.MaxDistance; d++ {
		var starts []int
		for c := 0; c < it.FrameCount-d; c += it.Increment {
			starts = append(starts, c)
		}
		if it.Randomize {
			it.rng.Shuffle(len(starts), func(i, j int) {
				starts[i], starts[j] = starts[j], starts[i]
			})
		}
		for _, c := range starts {
			pairs = append(pairs, CursorPair{Cursor1: c, Cursor2: c + d})
		}
	}
	return pairs
}
