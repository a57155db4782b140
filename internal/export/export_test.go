package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/sentinel/internal/model"
)

func exportFixture() []model.Anomaly {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	return []model.Anomaly{
		{
			ID:              "abc123",
			Timestamp:       ts,
			EntityID:        "sensor-17",
			EntityType:      "meter",
			Type:            model.TypeStatisticalOutlier,
			Severity:        model.SeverityCritical,
			Score:           4.12,
			Confidence:      0.82,
			DetectionMethod: model.MethodZScore,
			Description:     `statistical outlier in field "value"`,
		},
		{
			ID:              "def456",
			Timestamp:       ts,
			EntityID:        "sensor-3",
			Severity:        model.SeverityLow,
			Score:           1.1,
			Confidence:      0.55,
			DetectionMethod: model.MethodIQR,
			Description:     "mild | deviation",
		},
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, exportFixture()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3, "header plus one line per anomaly")
	assert.Equal(t, "id,timestamp,entity_id,entity_type,type,severity,score,confidence,detection_method,description,acknowledged", lines[0])
	assert.Contains(t, lines[1], "abc123")
	assert.Contains(t, lines[1], "sensor-17")
	assert.Contains(t, lines[1], "critical")
	assert.Contains(t, lines[2], "iqr_method")
}

func TestCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, nil))
	assert.Equal(t, "id,timestamp,entity_id,entity_type,type,severity,score,confidence,detection_method,description,acknowledged\n", buf.String())
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, exportFixture()))

	out := buf.String()
	assert.Contains(t, out, "# Anomaly Report")
	assert.Contains(t, out, "Total anomalies: 2")
	assert.Contains(t, out, "- critical: 1")
	assert.Contains(t, out, "- low: 1")
	assert.Contains(t, out, "| critical | sensor-17 | z_score | 4.12 | 0.82 |")
	assert.Contains(t, out, `mild \| deviation`, "pipes in descriptions must not break the table")
}

func TestMarkdown_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, nil))
	assert.Contains(t, buf.String(), "Total anomalies: 0")
	assert.NotContains(t, buf.String(), "| Severity |")
}
