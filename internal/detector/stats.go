// Package detector implements the statistical outlier tests and the
// score-to-severity classifier. Each test is stateless and independent:
// the same sample may be flagged by several tests with different scores,
// and downstream deduplication reconciles the overlap.
package detector

import (
	"math"
	"sort"
)

// Default thresholds for the statistical tests.
const (
	DefaultZScoreThreshold = 3.0
	DefaultMADThreshold    = 3.5
	DefaultIQRMultiplier   = 1.5
)

// Outlier identifies a flagged sample by its position within the numeric
// sequence handed to the test (not the original batch) and carries the raw
// detector statistic.
type Outlier struct {
	Index int
	Score float64
}

// ZScore flags samples whose absolute z-score against the population mean
// exceeds threshold. Requires at least 3 samples; a constant series
// (stddev 0) is never anomalous. The score is the signed z-score.
func ZScore(values []float64, threshold float64) []Outlier {
	if len(values) < 3 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultZScoreThreshold
	}

	mean := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(values)))
	if stddev == 0 {
		return nil
	}

	var out []Outlier
	for i, v := range values {
		z := (v - mean) / stddev
		if math.Abs(z) > threshold {
			out = append(out, Outlier{Index: i, Score: z})
		}
	}
	return out
}

// ModifiedZScore flags samples by the MAD-based robust z-score
// 0.6745*(v-median)/MAD. Requires at least 3 samples; a series with zero
// MAD is never anomalous. The score is the absolute modified z-score.
func ModifiedZScore(values []float64, threshold float64) []Outlier {
	if len(values) < 3 {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultMADThreshold
	}

	med := median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - med)
	}
	mad := median(deviations)
	if mad == 0 {
		return nil
	}

	var out []Outlier
	for i, v := range values {
		mz := math.Abs(0.6745 * (v - med) / mad)
		if mz > threshold {
			out = append(out, Outlier{Index: i, Score: mz})
		}
	}
	return out
}

// IQR flags samples outside the fence [Q1-k*IQR, Q3+k*IQR]. Quartiles are
// taken at the floor(n*0.25) and floor(n*0.75) indices of the sorted series
// (simple index percentile, not interpolated). Requires at least 4 samples.
// The score is the distance beyond the violated fence bound.
func IQR(values []float64, multiplier float64) []Outlier {
	if len(values) < 4 {
		return nil
	}
	if multiplier <= 0 {
		multiplier = DefaultIQRMultiplier
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	q1 := sorted[int(float64(n)*0.25)]
	q3 := sorted[int(float64(n)*0.75)]
	iqr := q3 - q1
	lower := q1 - multiplier*iqr
	upper := q3 + multiplier*iqr

	var out []Outlier
	for i, v := range values {
		if v < lower || v > upper {
			out = append(out, Outlier{Index: i, Score: math.Max(lower-v, v-upper)})
		}
	}
	return out
}

// Grubbs runs Grubbs' test for a single outlier: the sample with maximum
// absolute deviation from the mean is flagged when its test statistic G
// exceeds the critical value. Requires at least 3 samples and uses the
// sample standard deviation (N-1). Returns at most one outlier.
//
// The critical value is derived from a constant two-sided t-value of 1.96.
// This is an approximation: an exact implementation would look up the
// Student-t critical value for df=n-2 at significance alpha/(2n).
func Grubbs(values []float64) []Outlier {
	if len(values) < 3 {
		return nil
	}

	m := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(values)-1))
	if stddev == 0 {
		return nil
	}

	maxIdx := 0
	maxDev := 0.0
	for i, v := range values {
		if dev := math.Abs(v - m); dev > maxDev {
			maxDev = dev
			maxIdx = i
		}
	}

	g := maxDev / stddev

	n := float64(len(values))
	const t = 1.96
	critical := ((n - 1) / math.Sqrt(n)) * math.Sqrt((t*t)/(n-2+t*t))

	if g <= critical {
		return nil
	}
	return []Outlier{{Index: maxIdx, Score: g}}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
