package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spiked is a stable series around 100 with a single extreme value at the
// last index. All four tests should flag only that value.
var spiked = []float64{
	100, 102, 98, 101, 99, 100, 103, 97, 101, 99,
	100, 102, 98, 100, 101, 99, 100, 500,
}

func TestZScore_FlagsSpike(t *testing.T) {
	out := ZScore(spiked, 3.0)
	require.Len(t, out, 1)
	assert.Equal(t, 17, out[0].Index)
	assert.Greater(t, out[0].Score, 3.0)
}

func TestZScore_ConstantSeries(t *testing.T) {
	out := ZScore([]float64{5, 5, 5, 5, 5}, 3.0)
	assert.Empty(t, out)
}

func TestZScore_TooFewSamples(t *testing.T) {
	assert.Empty(t, ZScore(nil, 3.0))
	assert.Empty(t, ZScore([]float64{1}, 3.0))
	assert.Empty(t, ZScore([]float64{1, 100}, 3.0))
}

func TestZScore_NegativeOutlierKeepsSign(t *testing.T) {
	series := make([]float64, len(spiked))
	copy(series, spiked)
	series[17] = -300

	out := ZScore(series, 3.0)
	require.Len(t, out, 1)
	assert.Equal(t, 17, out[0].Index)
	assert.Less(t, out[0].Score, -3.0)
}

func TestModifiedZScore_FlagsSpike(t *testing.T) {
	out := ModifiedZScore(spiked, 3.5)
	require.Len(t, out, 1)
	assert.Equal(t, 17, out[0].Index)
	assert.Greater(t, out[0].Score, 3.5)
}

func TestModifiedZScore_ZeroMAD(t *testing.T) {
	// Majority of identical values drives MAD to zero even with a spike.
	out := ModifiedZScore([]float64{10, 10, 10, 10, 10, 10, 10, 999}, 3.5)
	assert.Empty(t, out)
}

func TestModifiedZScore_TooFewSamples(t *testing.T) {
	assert.Empty(t, ModifiedZScore([]float64{1, 2}, 3.5))
}

func TestIQR_FlagsOnlyExtreme(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100}
	out := IQR(values, 1.5)
	require.Len(t, out, 1)
	assert.Equal(t, 9, out[0].Index)

	// q1=3, q3=8 at floor-index percentiles; upper fence = 8 + 1.5*5 = 15.5.
	assert.InDelta(t, 84.5, out[0].Score, 1e-9)
}

func TestIQR_TooFewSamples(t *testing.T) {
	assert.Empty(t, IQR([]float64{1, 2, 100}, 1.5))
}

func TestIQR_LowOutlier(t *testing.T) {
	values := []float64{-100, 10, 11, 12, 13, 14, 15, 16, 17, 18}
	out := IQR(values, 1.5)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].Index)
	assert.Greater(t, out[0].Score, 0.0)
}

func TestGrubbs_SingleOutlierAtArgmax(t *testing.T) {
	out := Grubbs(spiked)
	require.Len(t, out, 1)
	assert.Equal(t, 17, out[0].Index)
	assert.Greater(t, out[0].Score, 1.0)
}

func TestGrubbs_AtMostOne(t *testing.T) {
	// Two extremes: only the larger deviation is a candidate.
	values := []float64{100, 100, 100, 100, 100, 100, 100, 100, -400, 900}
	out := Grubbs(values)
	require.LessOrEqual(t, len(out), 1)
	if len(out) == 1 {
		assert.Equal(t, 9, out[0].Index)
	}
}

func TestGrubbs_NoOutlierInTightSeries(t *testing.T) {
	out := Grubbs([]float64{10, 11, 12, 11, 10, 12, 11})
	assert.Empty(t, out)
}

func TestGrubbs_Guards(t *testing.T) {
	assert.Empty(t, Grubbs([]float64{1, 2}))
	assert.Empty(t, Grubbs([]float64{7, 7, 7, 7}))
}
