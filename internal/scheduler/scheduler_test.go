package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/sentinel/internal/config"
	"github.com/gridwatch/sentinel/internal/model"
	"github.com/gridwatch/sentinel/internal/notify"
	"github.com/gridwatch/sentinel/internal/pipeline"
	"github.com/gridwatch/sentinel/internal/source"
	"github.com/gridwatch/sentinel/internal/store"
)

type countingSource struct {
	fetches atomic.Int32
	batch   []model.DataPoint
}

func (c *countingSource) Name() string { return "counter" }

func (c *countingSource) Fetch(ctx context.Context) ([]model.DataPoint, error) {
	c.fetches.Add(1)
	return c.batch, nil
}

// failStore rejects every save so cycles fail deterministically.
type failStore struct {
	saves atomic.Int32
}

func (f *failStore) Save(ctx context.Context, a model.Anomaly) error {
	f.saves.Add(1)
	return eris.New("disk full")
}

func (f *failStore) Get(ctx context.Context, id string) (*model.Anomaly, error) { return nil, nil }

func (f *failStore) ListUnacknowledged(ctx context.Context, limit int) ([]model.Anomaly, error) {
	return nil, nil
}

func (f *failStore) Acknowledge(ctx context.Context, id string) error { return nil }

func (f *failStore) Stats(ctx context.Context) (*store.Stats, error) { return &store.Stats{}, nil }

func (f *failStore) Migrate(ctx context.Context) error { return nil }

func (f *failStore) Close() error { return nil }

func quietConfig() *config.Config {
	return &config.Config{
		Detection: config.DetectionConfig{
			ZScore: config.ZScoreConfig{Enabled: true, Threshold: 3.0, MADThreshold: 3.5},
		},
	}
}

func outlierBatch() []model.DataPoint {
	batch := make([]model.DataPoint, 0, 10)
	for i := range 9 {
		batch = append(batch, model.DataPoint{"entityId": "s", "value": 100.0 + float64(i%3)})
	}
	return append(batch, model.DataPoint{"entityId": "spike", "value": 10000.0})
}

func TestScheduler_StartAndStop(t *testing.T) {
	src := &countingSource{}
	p := pipeline.New(quietConfig(), []source.Source{src}, nil, &failStore{}, nil)

	bus := notify.NewBus(1, 4)
	defer bus.Close()

	s := New(p, config.ProcessingConfig{BatchIntervalMS: 20, FallbackDelayMS: 10}, bus)
	assert.Equal(t, StateStopped, s.State())

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateRunning, s.State())

	time.Sleep(70 * time.Millisecond)
	s.Stop()
	assert.Equal(t, StateStopped, s.State())

	fetched := src.fetches.Load()
	assert.GreaterOrEqual(t, fetched, int32(2), "first cycle fires immediately, later ones on the interval")

	// No cycles after stop.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, fetched, src.fetches.Load())

	select {
	case e := <-bus.Subscribe(0):
		assert.Equal(t, notify.EventStopped, e.Type)
	default:
		t.Fatal("expected a stopped event")
	}
}

func TestScheduler_StartTwiceFails(t *testing.T) {
	p := pipeline.New(quietConfig(), nil, nil, &failStore{}, nil)
	s := New(p, config.ProcessingConfig{BatchIntervalMS: 1000, FallbackDelayMS: 100}, nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot start while running")
}

func TestScheduler_StopIdempotent(t *testing.T) {
	p := pipeline.New(quietConfig(), nil, nil, &failStore{}, nil)
	s := New(p, config.ProcessingConfig{BatchIntervalMS: 1000, FallbackDelayMS: 100}, nil)

	// Stop before start is a no-op.
	s.Stop()

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop()
	assert.Equal(t, StateStopped, s.State())

	// Restart after a full stop is allowed.
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestScheduler_FallbackDelayOnCycleError(t *testing.T) {
	st := &failStore{}
	src := &countingSource{batch: outlierBatch()}
	p := pipeline.New(quietConfig(), []source.Source{src}, nil, st, nil)

	// Interval is far away; only the fallback delay can explain repeats.
	s := New(p, config.ProcessingConfig{BatchIntervalMS: 60000, FallbackDelayMS: 10}, nil)
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, st.saves.Load(), int32(2),
		"failed cycles retry on the fallback delay instead of waiting out the interval")
}

func TestScheduler_ContextCancelStopsLoop(t *testing.T) {
	src := &countingSource{}
	p := pipeline.New(quietConfig(), []source.Source{src}, nil, &failStore{}, nil)
	s := New(p, config.ProcessingConfig{BatchIntervalMS: 10, FallbackDelayMS: 10}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return s.State() == StateStopped },
		time.Second, 5*time.Millisecond)
}
