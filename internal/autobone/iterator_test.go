package autobone

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestFrameIterator_Ordered(t *testing.T) {
	cfg := testConfig()
	cfg.RandomizeFrameOrder = false
	cfg.MinDataDistance = 1
	cfg.MaxDataDistance = 2
	cfg.CursorIncrement = 2

	got := NewFrameIterator(cfg, 6).Pairs()
	want := []CursorPair{
		{0, 1}, {2, 3}, {4, 5},
		{0, 2}, {2, 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameIterator_RandomizedIsPermutation(t *testing.T) {
	cfg := testConfig()
	cfg.RandomizeFrameOrder = true
	cfg.CursorIncrement = 1

	it := NewFrameIterator(cfg, 50)
	got := it.Pairs()
	assert.Len(t, got, 49)

	starts := make([]int, len(got))
	for i, p := range got {
		assert.Equal(t, 1, p.Cursor2-p.Cursor1)
		starts[i] = p.Cursor1
	}
	sort.Ints(starts)
	for i, s := range starts {
		assert.Equal(t, i, s)
	}

	again := NewFrameIterator(cfg, 50).Pairs()
	assert.Equal(t, got, again, "same seed gives the same order")
}

func TestFrameIterator_Bounds(t *testing.T) {
	cfg := testConfig()
	cfg.MinDataDistance = 0
	cfg.MaxDataDistance = 0
	cfg.CursorIncrement = 0

	it := NewFrameIterator(cfg, 3)
	assert.Equal(t, 1, it.MinDistance)
	assert.Equal(t, 1, it.MaxDistance)
	assert.Equal(t, 1, it.Increment)
	assert.True(t, it.HasPairs())

	assert.False(t, NewFrameIterator(cfg, 1).HasPairs())
	assert.Empty(t, NewFrameIterator(cfg, 1).Pairs())
}

func TestDecayPolicy(t *testing.T) {
	p := DecayPolicy{InitialRate: 2, RateMultiplier: 0.5}
	assert.Equal(t, 2.0, p.Rate(0))
	assert.Equal(t, 0.5, p.Rate(2))
	assert.Equal(t, 2.0, p.Rate(-1))

	assert.InDelta(t, 0.3, p.Magnitude(0.5, 0.4, -0.5), 1e-12)
	assert.Equal(t, -1.0, p.PreferredSign(0.2))
	assert.Equal(t, 1.0, p.PreferredSign(-0.2))
	assert.Equal(t, 1.0, p.PreferredSign(0))
}
