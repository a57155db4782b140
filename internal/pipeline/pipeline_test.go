package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/sentinel/internal/config"
	"github.com/gridwatch/sentinel/internal/model"
	"github.com/gridwatch/sentinel/internal/notify"
	"github.com/gridwatch/sentinel/internal/rules"
	"github.com/gridwatch/sentinel/internal/source"
	"github.com/gridwatch/sentinel/internal/store"
)

type staticSource struct {
	name  string
	batch []model.DataPoint
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Fetch(ctx context.Context) ([]model.DataPoint, error) {
	return s.batch, nil
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }

func (failingSource) Fetch(ctx context.Context) ([]model.DataPoint, error) {
	return nil, eris.New("connection refused")
}

func testConfig() *config.Config {
	return &config.Config{
		Detection: config.DetectionConfig{
			ZScore: config.ZScoreConfig{Enabled: true, Threshold: 3.0, MADThreshold: 3.5},
			Grubbs: config.GrubbsConfig{Enabled: true, SignificanceLevel: 0.05},
			IQR:    config.IQRConfig{Enabled: true, Multiplier: 1.5},
		},
	}
}

// spikedBatch produces readings clustered near 100 with one large spike.
func spikedBatch() []model.DataPoint {
	values := []float64{95, 97, 98, 99, 100, 100, 100, 101, 101, 102, 103, 104, 105, 96, 99, 102, 98, 500}
	batch := make([]model.DataPoint, len(values))
	for i, v := range values {
		batch[i] = model.DataPoint{
			"entityId": fmt.Sprintf("sensor-%d", i),
			"value":    v,
		}
	}
	return batch
}

func newTestPipeline(t *testing.T, cfg *config.Config, engine *rules.Engine, sources ...source.Source) (*Pipeline, store.Store, *notify.Bus) {
	t.Helper()
	st := store.NewJSONFile(filepath.Join(t.TempDir(), "anomalies.json"))
	bus := notify.NewBus(1, 16)
	t.Cleanup(bus.Close)

	p := New(cfg, sources, engine, st, bus)
	return p, st, bus
}

func TestPipeline_CycleDetectsSpike(t *testing.T) {
	p, st, bus := newTestPipeline(t, testConfig(), nil, staticSource{name: "meters", batch: spikedBatch()})

	result, err := p.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18, result.DataPoints)
	require.NotEmpty(t, result.Anomalies)

	methods := make(map[model.DetectionMethod]bool)
	for _, a := range result.Anomalies {
		assert.Equal(t, "sensor-17", a.EntityID, "only the spiked reading should be flagged")
		assert.Equal(t, model.TypeStatisticalOutlier, a.Type)
		methods[a.DetectionMethod] = true
	}
	assert.True(t, methods[model.MethodZScore])
	assert.True(t, methods[model.MethodModifiedZScore])
	assert.True(t, methods[model.MethodIQR])
	assert.True(t, methods[model.MethodGrubbs])

	// Persisted and retrievable in priority order.
	listed, err := st.ListUnacknowledged(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, listed, len(result.Anomalies))

	// One detected event per non-empty cycle.
	select {
	case e := <-bus.Subscribe(0):
		assert.Equal(t, notify.EventDetected, e.Type)
		assert.Equal(t, len(result.Anomalies), e.AnomalyCount)
		assert.Equal(t, 18, e.DataPointsProcessed)
	default:
		t.Fatal("expected a detected event")
	}
}

func TestPipeline_UseModifiedOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.ZScore.UseModifiedOnly = true
	cfg.Detection.IQR.Enabled = false
	cfg.Detection.Grubbs.Enabled = false

	p, _, _ := newTestPipeline(t, cfg, nil, staticSource{name: "meters", batch: spikedBatch()})

	result, err := p.Cycle(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, result.Anomalies)
	for _, a := range result.Anomalies {
		assert.Equal(t, model.MethodModifiedZScore, a.DetectionMethod)
	}
}

func TestPipeline_RulesProduceAnomalies(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.ZScore.Enabled = false
	cfg.Detection.IQR.Enabled = false
	cfg.Detection.Grubbs.Enabled = false

	engine := rules.NewEngine([]model.Rule{{
		Name:        "overload",
		Description: "reading above safe limit",
		Severity:    model.SeverityCritical,
		Conditions: []model.Condition{
			{Field: "value", Operator: ">", Value: 400},
		},
	}})

	p, _, _ := newTestPipeline(t, cfg, engine, staticSource{name: "meters", batch: spikedBatch()})

	result, err := p.Cycle(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Anomalies, 1)

	a := result.Anomalies[0]
	assert.Equal(t, "sensor-17", a.EntityID)
	assert.Equal(t, model.MethodBusinessRule, a.DetectionMethod)
	assert.Equal(t, model.TypePointAnomaly, a.Type)
	assert.Equal(t, model.SeverityCritical, a.Severity)
	assert.Equal(t, 1.0, a.Score)
	assert.Equal(t, 0.9, a.Confidence)
	assert.Equal(t, "reading above safe limit", a.Description)
}

func TestPipeline_EmptyBatchSkipsCycle(t *testing.T) {
	p, _, bus := newTestPipeline(t, testConfig(), nil, staticSource{name: "empty"})

	result, err := p.Cycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.DataPoints)
	assert.Empty(t, result.Anomalies)

	select {
	case e := <-bus.Subscribe(0):
		t.Fatalf("no event expected for empty batch, got %s", e.Type)
	default:
	}
}

func TestPipeline_SourceFailureIsIsolated(t *testing.T) {
	cfg := testConfig()
	st := store.NewJSONFile(filepath.Join(t.TempDir(), "anomalies.json"))

	p := New(cfg, []source.Source{
		failingSource{},
		staticSource{name: "meters", batch: spikedBatch()},
	}, nil, st, nil)

	result, err := p.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 18, result.DataPoints, "healthy source still contributes its batch")
	assert.NotEmpty(t, result.Anomalies)
}

func TestPipeline_RecordTimestampUsed(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.ZScore.Enabled = false
	cfg.Detection.IQR.Enabled = false
	cfg.Detection.Grubbs.Enabled = false

	engine := rules.NewEngine([]model.Rule{{
		Name:       "always",
		Conditions: []model.Condition{{Field: "value", Operator: ">", Value: 0}},
	}})

	batch := []model.DataPoint{{
		"entityId":  "sensor-1",
		"value":     5.0,
		"timestamp": "2026-08-30T10:00:00Z",
	}}

	p, _, _ := newTestPipeline(t, cfg, engine, staticSource{name: "meters", batch: batch})

	result, err := p.Cycle(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, "2026-08-30T10:00:00Z", result.Anomalies[0].Timestamp.Format("2006-01-02T15:04:05Z"))
}

func TestPipeline_DeterministicIDs(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.ZScore.Enabled = false
	cfg.Detection.IQR.Enabled = false
	cfg.Detection.Grubbs.Enabled = false

	engine := rules.NewEngine([]model.Rule{{
		Name:       "always",
		Conditions: []model.Condition{{Field: "value", Operator: ">", Value: 0}},
	}})

	batch := []model.DataPoint{{
		"entityId":  "sensor-1",
		"value":     5.0,
		"timestamp": "2026-08-30T10:00:00Z",
	}}

	p1, _, _ := newTestPipeline(t, cfg, engine, staticSource{name: "a", batch: batch})
	p2, _, _ := newTestPipeline(t, cfg, engine, staticSource{name: "b", batch: batch})

	r1, err := p1.Cycle(context.Background())
	require.NoError(t, err)
	r2, err := p2.Cycle(context.Background())
	require.NoError(t, err)

	require.Len(t, r1.Anomalies, 1)
	require.Len(t, r2.Anomalies, 1)
	assert.Equal(t, r1.Anomalies[0].ID, r2.Anomalies[0].ID,
		"same entity, method, and timestamp must map to the same id")
}
