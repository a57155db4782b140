// Package store persists anomalies with an acknowledgment workflow and
// priority-ordered retrieval. Backends share upsert-by-id semantics: saving
// an anomaly whose deterministic id already exists overwrites it in place.
package store

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/gridwatch/sentinel/internal/config"
	"github.com/gridwatch/sentinel/internal/model"
)

// Stats summarizes the stored anomalies.
type Stats struct {
	Total          int                    `json:"total"`
	Unacknowledged int                    `json:"unacknowledged"`
	BySeverity     map[model.Severity]int `json:"by_severity"`
}

// Store defines the persistence interface for anomalies. The core never
// deletes anomalies; acknowledgment is the only mutation after save.
type Store interface {
	// Save upserts by anomaly id and persists synchronously.
	Save(ctx context.Context, a model.Anomaly) error

	// Get returns the anomaly with the given id, or nil when absent.
	Get(ctx context.Context, id string) (*model.Anomaly, error)

	// ListUnacknowledged returns unacknowledged anomalies ordered by
	// severity ascending (critical first), then timestamp descending,
	// truncated to limit (<=0 means no truncation).
	ListUnacknowledged(ctx context.Context, limit int) ([]model.Anomaly, error)

	// Acknowledge marks the anomaly acknowledged. Absent ids are a no-op.
	Acknowledge(ctx context.Context, id string) error

	// Stats returns aggregate counts.
	Stats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store backend selected by the config driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "jsonfile":
		return NewJSONFile(cfg.Path), nil
	case "sqlite":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// sortAnomalies orders by severity rank ascending, then timestamp
// descending among equal severities.
func sortAnomalies(anomalies []model.Anomaly) {
	sort.SliceStable(anomalies, func(i, j int) bool {
		ri, rj := anomalies[i].Severity.Rank(), anomalies[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return anomalies[i].Timestamp.After(anomalies[j].Timestamp)
	})
}
