package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gridwatch/sentinel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS anomalies (
	id               TEXT PRIMARY KEY,
	timestamp        DATETIME NOT NULL,
	entity_id        TEXT NOT NULL,
	entity_type      TEXT NOT NULL DEFAULT '',
	anomaly_type     TEXT NOT NULL,
	severity         TEXT NOT NULL,
	severity_rank    INTEGER NOT NULL,
	score            REAL NOT NULL,
	confidence       REAL NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	data_point       TEXT,
	detection_method TEXT NOT NULL,
	metadata         TEXT,
	acknowledged     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_anomalies_unacked ON anomalies(acknowledged, severity_rank, timestamp);
CREATE INDEX IF NOT EXISTS idx_anomalies_entity ON anomalies(entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, a model.Anomaly) error {
	dataPoint, metadata, err := marshalPayloads(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO anomalies (
			id, timestamp, entity_id, entity_type, anomaly_type, severity,
			severity_rank, score, confidence, description, data_point,
			detection_method, metadata, acknowledged
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp        = excluded.timestamp,
			entity_id        = excluded.entity_id,
			entity_type      = excluded.entity_type,
			anomaly_type     = excluded.anomaly_type,
			severity         = excluded.severity,
			severity_rank    = excluded.severity_rank,
			score            = excluded.score,
			confidence       = excluded.confidence,
			description      = excluded.description,
			data_point       = excluded.data_point,
			detection_method = excluded.detection_method,
			metadata         = excluded.metadata,
			acknowledged     = excluded.acknowledged`,
		a.ID, a.Timestamp.UTC(), a.EntityID, a.EntityType, string(a.Type),
		string(a.Severity), a.Severity.Rank(), a.Score, a.Confidence,
		a.Description, dataPoint, string(a.DetectionMethod), metadata,
		boolToInt(a.Acknowledged),
	)
	return eris.Wrapf(err, "sqlite: save anomaly %s", a.ID)
}

const sqliteSelectColumns = `id, timestamp, entity_id, entity_type, anomaly_type, severity,
	score, confidence, description, data_point, detection_method, metadata, acknowledged`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Anomaly, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSelectColumns+` FROM anomalies WHERE id = ?`, id,
	)
	a, err := scanAnomaly(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get anomaly %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) ListUnacknowledged(ctx context.Context, limit int) ([]model.Anomaly, error) {
	query := `SELECT ` + sqliteSelectColumns + `
		FROM anomalies WHERE acknowledged = 0
		ORDER BY severity_rank ASC, timestamp DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unacknowledged")
	}
	defer rows.Close()

	var out []model.Anomaly
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan anomaly")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list iterate")
}

func (s *SQLiteStore) Acknowledge(ctx context.Context, id string) error {
	// Absent ids are deliberately a no-op, so rows-affected is not checked.
	_, err := s.db.ExecContext(ctx,
		`UPDATE anomalies SET acknowledged = 1 WHERE id = ?`, id,
	)
	return eris.Wrapf(err, "sqlite: acknowledge %s", id)
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, acknowledged, COUNT(*) FROM anomalies GROUP BY severity, acknowledged`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	defer rows.Close()

	stats := &Stats{BySeverity: make(map[model.Severity]int)}
	for rows.Next() {
		var severity string
		var acked, count int
		if err := rows.Scan(&severity, &acked, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats")
		}
		stats.Total += count
		stats.BySeverity[model.Severity(severity)] += count
		if acked == 0 {
			stats.Unacknowledged += count
		}
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: stats iterate")
}

// helpers

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalPayloads(a model.Anomaly) (dataPoint, metadata []byte, err error) {
	if a.DataPoint != nil {
		dataPoint, err = json.Marshal(a.DataPoint)
		if err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal data point")
		}
	}
	if a.Metadata != nil {
		metadata, err = json.Marshal(a.Metadata)
		if err != nil {
			return nil, nil, eris.Wrap(err, "store: marshal metadata")
		}
	}
	return dataPoint, metadata, nil
}

func unmarshalPayloads(a *model.Anomaly, dataPoint, metadata []byte) error {
	if len(dataPoint) > 0 {
		if err := json.Unmarshal(dataPoint, &a.DataPoint); err != nil {
			return eris.Wrap(err, "store: unmarshal data point")
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return eris.Wrap(err, "store: unmarshal metadata")
		}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAnomaly(row scannable) (*model.Anomaly, error) {
	var a model.Anomaly
	var ts time.Time
	var anomalyType, severity, method string
	var dataPoint, metadata sql.NullString
	var acked int

	err := row.Scan(&a.ID, &ts, &a.EntityID, &a.EntityType, &anomalyType,
		&severity, &a.Score, &a.Confidence, &a.Description, &dataPoint,
		&method, &metadata, &acked)
	if err != nil {
		return nil, err
	}

	a.Timestamp = ts
	a.Type = model.AnomalyType(anomalyType)
	a.Severity = model.Severity(severity)
	a.DetectionMethod = model.DetectionMethod(method)
	a.Acknowledged = acked != 0

	if dataPoint.Valid && dataPoint.String != "" {
		if err := json.Unmarshal([]byte(dataPoint.String), &a.DataPoint); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal data point")
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &a.Metadata); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal metadata")
		}
	}
	return &a, nil
}
