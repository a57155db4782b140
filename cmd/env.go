package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridwatch/sentinel/internal/config"
	"github.com/gridwatch/sentinel/internal/model"
	"github.com/gridwatch/sentinel/internal/notify"
	"github.com/gridwatch/sentinel/internal/pipeline"
	"github.com/gridwatch/sentinel/internal/rules"
	"github.com/gridwatch/sentinel/internal/source"
	"github.com/gridwatch/sentinel/internal/store"
)

// env bundles the wired components commands share.
type env struct {
	store    store.Store
	sources  []source.Source
	engine   *rules.Engine
	bus      *notify.Bus
	pipeline *pipeline.Pipeline
	webhook  *notify.Webhook
}

// initEnv opens the store, loads rules and sources, and wires the
// pipeline with an event bus. The webhook subscriber occupies bus slot 0
// when configured.
func initEnv(ctx context.Context) (*env, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	engine, err := buildRules(cfg.Rules)
	if err != nil {
		st.Close()
		return nil, err
	}

	sources, err := source.FromConfig(cfg.Sources)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "configure sources")
	}

	webhook := notify.NewWebhook(cfg.Notify)
	subscribers := 0
	if webhook != nil {
		subscribers = 1
	}
	bus := notify.NewBus(subscribers, cfg.Notify.Buffer)

	zap.L().Info("environment ready",
		zap.Int("sources", len(sources)),
		zap.Int("rules", len(engine.Rules())),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("webhook", webhook != nil),
	)

	return &env{
		store:    st,
		sources:  sources,
		engine:   engine,
		bus:      bus,
		pipeline: pipeline.New(cfg, sources, engine, st, bus),
		webhook:  webhook,
	}, nil
}

func (e *env) Close() {
	e.bus.Close()
	if err := e.store.Close(); err != nil {
		zap.L().Warn("failed to close store", zap.Error(err))
	}
}

// buildRules merges file-based and inline rules into one engine.
func buildRules(rc config.RulesConfig) (*rules.Engine, error) {
	var list []model.Rule
	if rc.Path != "" {
		loaded, err := rules.LoadFile(rc.Path)
		if err != nil {
			return nil, eris.Wrap(err, "load rules file")
		}
		list = append(list, loaded...)
	}
	list = append(list, rules.Validate(rc.Inline)...)
	return rules.NewEngine(list), nil
}
