// Package pipeline runs detection cycles: collect batches from all
// sources, flag anomalies statistically and against business rules,
// deduplicate, persist, and announce results.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridwatch/sentinel/internal/config"
	"github.com/gridwatch/sentinel/internal/detector"
	"github.com/gridwatch/sentinel/internal/model"
	"github.com/gridwatch/sentinel/internal/notify"
	"github.com/gridwatch/sentinel/internal/rules"
	"github.com/gridwatch/sentinel/internal/source"
	"github.com/gridwatch/sentinel/internal/store"
)

// Pipeline wires sources, detectors, rules, the store, and the event bus
// into a single detection cycle.
type Pipeline struct {
	cfg     *config.Config
	sources []source.Source
	engine  *rules.Engine
	store   store.Store
	bus     *notify.Bus
}

// New creates a Pipeline with all dependencies.
func New(cfg *config.Config, sources []source.Source, engine *rules.Engine, st store.Store, bus *notify.Bus) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		sources: sources,
		engine:  engine,
		store:   st,
		bus:     bus,
	}
}

// CycleResult summarizes one detection cycle.
type CycleResult struct {
	DataPoints int
	Anomalies  []model.Anomaly
}

// Cycle runs one full detection pass. An empty batch is skipped without
// an event. Source failures are isolated; a persistence failure aborts
// the cycle.
func (p *Pipeline) Cycle(ctx context.Context) (*CycleResult, error) {
	batch := p.collect(ctx)
	if len(batch) == 0 {
		zap.L().Debug("pipeline: empty batch, skipping cycle")
		return &CycleResult{}, nil
	}

	anomalies := p.detectStatistical(batch)
	anomalies = append(anomalies, p.applyRules(batch)...)
	anomalies = Deduplicate(anomalies)

	for _, a := range anomalies {
		if err := p.store.Save(ctx, a); err != nil {
			return nil, eris.Wrap(err, "pipeline: persist anomaly")
		}
	}

	zap.L().Info("pipeline: cycle complete",
		zap.Int("data_points", len(batch)),
		zap.Int("anomalies", len(anomalies)),
	)

	if p.bus != nil {
		p.bus.Publish(notify.NewEvent(notify.EventDetected, len(anomalies), len(batch)))
	}

	return &CycleResult{DataPoints: len(batch), Anomalies: anomalies}, nil
}

// collect fans out over all sources concurrently. A failing source only
// loses its own batch; the rest of the cycle proceeds.
func (p *Pipeline) collect(ctx context.Context) []model.DataPoint {
	var mu sync.Mutex
	var batch []model.DataPoint

	g, gCtx := errgroup.WithContext(ctx)
	for _, src := range p.sources {
		g.Go(func() error {
			points, err := src.Fetch(gCtx)
			if err != nil {
				zap.L().Error("pipeline: source fetch failed",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			batch = append(batch, points...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return batch
}

// detectStatistical runs the enabled statistical tests over every numeric
// field in the batch.
func (p *Pipeline) detectStatistical(batch []model.DataPoint) []model.Anomaly {
	det := p.cfg.Detection
	var anomalies []model.Anomaly

	emit := func(s *fieldSeries, field string, method model.DetectionMethod, outliers []detector.Outlier) {
		for _, o := range outliers {
			record := batch[s.records[o.Index]]
			anomalies = append(anomalies, buildStatAnomaly(record, field, s.values[o.Index], method, o.Score))
		}
	}

	fields, series := numericSeries(batch)
	for _, field := range fields {
		s := series[field]

		if det.ZScore.Enabled {
			if !det.ZScore.UseModifiedOnly {
				emit(s, field, model.MethodZScore, detector.ZScore(s.values, det.ZScore.Threshold))
			}
			emit(s, field, model.MethodModifiedZScore, detector.ModifiedZScore(s.values, det.ZScore.MADThreshold))
		}
		if det.IQR.Enabled {
			emit(s, field, model.MethodIQR, detector.IQR(s.values, det.IQR.Multiplier))
		}
		if det.Grubbs.Enabled {
			emit(s, field, model.MethodGrubbs, detector.Grubbs(s.values))
		}
	}
	return anomalies
}

// applyRules evaluates every record against the rule engine.
func (p *Pipeline) applyRules(batch []model.DataPoint) []model.Anomaly {
	if p.engine == nil {
		return nil
	}
	var anomalies []model.Anomaly
	for _, record := range batch {
		for _, rule := range p.engine.Evaluate(record) {
			anomalies = append(anomalies, buildRuleAnomaly(record, rule))
		}
	}
	return anomalies
}

func buildStatAnomaly(record model.DataPoint, field string, value float64, method model.DetectionMethod, score float64) model.Anomaly {
	severity, confidence := detector.Classify(score)
	ts := recordTime(record)
	entityID := record.EntityID()

	return model.Anomaly{
		ID:              model.AnomalyID(entityID, method, ts),
		Timestamp:       ts,
		EntityID:        entityID,
		EntityType:      record.EntityType(),
		Type:            model.TypeStatisticalOutlier,
		Severity:        severity,
		Score:           score,
		Confidence:      confidence,
		Description:     fmt.Sprintf("statistical outlier in field %q", field),
		DataPoint:       record,
		DetectionMethod: method,
		Metadata: map[string]any{
			"field": field,
			"value": value,
			"score": score,
		},
	}
}

func buildRuleAnomaly(record model.DataPoint, rule model.Rule) model.Anomaly {
	ts := recordTime(record)
	entityID := record.EntityID()

	description := rule.Description
	if description == "" {
		description = fmt.Sprintf("rule %q matched", rule.Name)
	}

	return model.Anomaly{
		ID:              model.AnomalyID(entityID, model.MethodBusinessRule, ts),
		Timestamp:       ts,
		EntityID:        entityID,
		EntityType:      record.EntityType(),
		Type:            model.TypePointAnomaly,
		Severity:        rule.EffectiveSeverity(),
		Score:           detector.RuleScore,
		Confidence:      detector.RuleConfidence,
		Description:     description,
		DataPoint:       record,
		DetectionMethod: model.MethodBusinessRule,
		Metadata: map[string]any{
			"rule": rule.Name,
		},
	}
}

// recordTime uses the record's own timestamp when it carries one in
// RFC 3339 form, falling back to the current time.
func recordTime(record model.DataPoint) time.Time {
	if raw, ok := record["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}
