package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnomalyID_Deterministic(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	a := AnomalyID("sensor-1", MethodZScore, ts)
	b := AnomalyID("sensor-1", MethodZScore, ts)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16, "hex of the first 8 digest bytes")

	// Any component changing yields a different id.
	assert.NotEqual(t, a, AnomalyID("sensor-2", MethodZScore, ts))
	assert.NotEqual(t, a, AnomalyID("sensor-1", MethodIQR, ts))
	assert.NotEqual(t, a, AnomalyID("sensor-1", MethodZScore, ts.Add(time.Nanosecond)))
}

func TestAnomalyID_TimezoneInsensitive(t *testing.T) {
	utc := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	shifted := utc.In(time.FixedZone("EST", -5*3600))
	assert.Equal(t,
		AnomalyID("sensor-1", MethodGrubbs, utc),
		AnomalyID("sensor-1", MethodGrubbs, shifted))
}

func TestSeverityRank(t *testing.T) {
	assert.Equal(t, 1, SeverityCritical.Rank())
	assert.Equal(t, 2, SeverityHigh.Rank())
	assert.Equal(t, 3, SeverityMedium.Rank())
	assert.Equal(t, 4, SeverityLow.Rank())
	assert.Equal(t, 5, Severity("urgent").Rank(), "unknown severities sort last")
}

func TestSeverityValid(t *testing.T) {
	assert.True(t, SeverityCritical.Valid())
	assert.True(t, SeverityLow.Valid())
	assert.False(t, Severity("urgent").Valid())
	assert.False(t, Severity("").Valid())
}
