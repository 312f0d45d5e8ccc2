package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveConfidenceDecay(t *testing.T) {
	// Half-life behavior: base 0.8 halves at 90 days and quarters at 180.
	c := EffectiveConfidence(0.8, 0, 0, 0, 90)
	assert.InDelta(t, 0.8, c.Effective, 0.001)

	c = EffectiveConfidence(0.8, 90, 0, 0, 90)
	assert.InDelta(t, 0.4, c.Effective, 0.004)

	c = EffectiveConfidence(0.8, 180, 0, 0, 90)
	assert.InDelta(t, 0.2, c.Effective, 0.002)
}

func TestEffectiveConfidenceMomentum(t *testing.T) {
	base := EffectiveConfidence(0.5, 0, 0, 0, 90).Effective
	boosted := EffectiveConfidence(0.5, 0, 10, 10, 90).Effective

	// A perfect success ratio lifts by exactly the 1.2x cap.
	assert.InDelta(t, base*1.2, boosted, 0.001)
	assert.Greater(t, boosted, base)
}

func TestEffectiveConfidenceCappedAtOne(t *testing.T) {
	c := EffectiveConfidence(1.0, 0, 100, 100, 90)
	assert.LessOrEqual(t, c.Effective, 1.0)
	assert.False(t, c.Drifting)
}

func TestEffectiveConfidenceDrift(t *testing.T) {
	// 5+ uses with under 40% success halves the value and flags drift.
	healthy := EffectiveConfidence(0.8, 0, 10, 8, 90)
	assert.False(t, healthy.Drifting)

	drifting := EffectiveConfidence(0.8, 0, 10, 2, 90)
	assert.True(t, drifting.Drifting)
	assert.Less(t, drifting.Effective, healthy.Effective/2)

	// Under the usage threshold a poor ratio does not drift.
	young := EffectiveConfidence(0.8, 0, 3, 0, 90)
	assert.False(t, young.Drifting)
}

func TestEffectiveConfidenceBounds(t *testing.T) {
	for _, tc := range []struct {
		base    float64
		age     float64
		usage   int64
		success int64
	}{
		{0, 0, 0, 0},
		{1, 0, 0, 0},
		{1, 10000, 0, 0},
		{0.9, -5, 50, 50},
		{0.5, 30, 7, 1},
	} {
		c := EffectiveConfidence(tc.base, tc.age, tc.usage, tc.success, 90)
		assert.GreaterOrEqual(t, c.Effective, 0.0)
		assert.LessOrEqual(t, c.Effective, 1.0)
		// Never exceeds 1.2x base even before the unit cap.
		assert.LessOrEqual(t, c.Effective, tc.base*1.2+1e-9)
	}
}

func TestEffectiveConfidenceZeroHalfLifeDefaults(t *testing.T) {
	a := EffectiveConfidence(0.8, 90, 0, 0, 0)
	b := EffectiveConfidence(0.8, 90, 0, 0, 90)
	assert.Equal(t, b.Effective, a.Effective)
}
