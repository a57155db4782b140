package store

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridwatch/sentinel/internal/model"
)

// JSONFileStore keeps all anomalies in memory and rewrites a flat JSON
// array on every mutation. A failed or missing load yields an empty store
// rather than an error, matching the pipeline's best-effort posture.
type JSONFileStore struct {
	mu        sync.RWMutex
	path      string
	anomalies []model.Anomaly
	index     map[string]int // id -> position in anomalies
	loaded    bool
}

// NewJSONFile creates a JSON-file store at path. The file is read lazily
// on first use (or via Migrate).
func NewJSONFile(path string) *JSONFileStore {
	return &JSONFileStore{
		path:  path,
		index: make(map[string]int),
	}
}

// Migrate loads the backing file into memory.
func (s *JSONFileStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return nil
}

func (s *JSONFileStore) Close() error {
	return nil
}

// load reads the backing file. Must hold s.mu.
func (s *JSONFileStore) load() {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("store: failed to load anomaly file, starting empty",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return
	}

	var anomalies []model.Anomaly
	if err := json.Unmarshal(data, &anomalies); err != nil {
		zap.L().Warn("store: corrupt anomaly file, starting empty",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return
	}

	s.anomalies = anomalies
	for i, a := range anomalies {
		s.index[a.ID] = i
	}
}

// flush rewrites the whole backing file. Must hold s.mu.
func (s *JSONFileStore) flush() error {
	data, err := json.MarshalIndent(s.anomalies, "", "  ")
	if err != nil {
		return eris.Wrap(err, "store: marshal anomalies")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return eris.Wrapf(err, "store: write %s", s.path)
	}
	return nil
}

func (s *JSONFileStore) Save(ctx context.Context, a model.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	if pos, ok := s.index[a.ID]; ok {
		s.anomalies[pos] = a
	} else {
		s.index[a.ID] = len(s.anomalies)
		s.anomalies = append(s.anomalies, a)
	}
	return s.flush()
}

func (s *JSONFileStore) Get(ctx context.Context, id string) (*model.Anomaly, error) {
	s.mu.Lock()
	s.load()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return nil, nil
	}
	a := s.anomalies[pos]
	return &a, nil
}

func (s *JSONFileStore) ListUnacknowledged(ctx context.Context, limit int) ([]model.Anomaly, error) {
	s.mu.Lock()
	s.load()
	defer s.mu.Unlock()

	var out []model.Anomaly
	for _, a := range s.anomalies {
		if !a.Acknowledged {
			out = append(out, a)
		}
	}
	sortAnomalies(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JSONFileStore) Acknowledge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	pos, ok := s.index[id]
	if !ok {
		return nil
	}
	if s.anomalies[pos].Acknowledged {
		return nil
	}
	s.anomalies[pos].Acknowledged = true
	return s.flush()
}

func (s *JSONFileStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	s.load()
	defer s.mu.Unlock()

	stats := &Stats{
		Total:      len(s.anomalies),
		BySeverity: make(map[model.Severity]int),
	}
	for _, a := range s.anomalies {
		stats.BySeverity[a.Severity]++
		if !a.Acknowledged {
			stats.Unacknowledged++
		}
	}
	return stats, nil
}
