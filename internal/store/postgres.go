package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gridwatch/sentinel/internal/model"
)

// Pool abstracts the pgx pool methods the store needs, so tests can swap
// in pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS anomalies (
	id               TEXT PRIMARY KEY,
	timestamp        TIMESTAMPTZ NOT NULL,
	entity_id        TEXT NOT NULL,
	entity_type      TEXT NOT NULL DEFAULT '',
	anomaly_type     TEXT NOT NULL,
	severity         TEXT NOT NULL,
	severity_rank    INTEGER NOT NULL,
	score            DOUBLE PRECISION NOT NULL,
	confidence       DOUBLE PRECISION NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	data_point       JSONB,
	detection_method TEXT NOT NULL,
	metadata         JSONB,
	acknowledged     BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_anomalies_unacked ON anomalies(acknowledged, severity_rank, timestamp);
CREATE INDEX IF NOT EXISTS idx_anomalies_entity ON anomalies(entity_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, a model.Anomaly) error {
	dataPoint, metadata, err := marshalPayloads(a)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO anomalies (
			id, timestamp, entity_id, entity_type, anomaly_type, severity,
			severity_rank, score, confidence, description, data_point,
			detection_method, metadata, acknowledged
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			timestamp        = EXCLUDED.timestamp,
			entity_id        = EXCLUDED.entity_id,
			entity_type      = EXCLUDED.entity_type,
			anomaly_type     = EXCLUDED.anomaly_type,
			severity         = EXCLUDED.severity,
			severity_rank    = EXCLUDED.severity_rank,
			score            = EXCLUDED.score,
			confidence       = EXCLUDED.confidence,
			description      = EXCLUDED.description,
			data_point       = EXCLUDED.data_point,
			detection_method = EXCLUDED.detection_method,
			metadata         = EXCLUDED.metadata,
			acknowledged     = EXCLUDED.acknowledged`,
		a.ID, a.Timestamp.UTC(), a.EntityID, a.EntityType, string(a.Type),
		string(a.Severity), a.Severity.Rank(), a.Score, a.Confidence,
		a.Description, dataPoint, string(a.DetectionMethod), metadata,
		a.Acknowledged,
	)
	return eris.Wrapf(err, "postgres: save anomaly %s", a.ID)
}

const postgresSelectColumns = `id, timestamp, entity_id, entity_type, anomaly_type, severity,
	score, confidence, description, data_point, detection_method, metadata, acknowledged`

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Anomaly, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresSelectColumns+` FROM anomalies WHERE id = $1`, id,
	)
	a, err := scanPostgresAnomaly(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get anomaly %s", id)
	}
	return a, nil
}

func (s *PostgresStore) ListUnacknowledged(ctx context.Context, limit int) ([]model.Anomaly, error) {
	query := `SELECT ` + postgresSelectColumns + `
		FROM anomalies WHERE acknowledged = FALSE
		ORDER BY severity_rank ASC, timestamp DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unacknowledged")
	}
	defer rows.Close()

	var out []model.Anomaly
	for rows.Next() {
		a, err := scanPostgresAnomaly(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan anomaly")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list iterate")
}

func (s *PostgresStore) Acknowledge(ctx context.Context, id string) error {
	// Absent ids are deliberately a no-op, so rows-affected is not checked.
	_, err := s.pool.Exec(ctx,
		`UPDATE anomalies SET acknowledged = TRUE WHERE id = $1`, id,
	)
	return eris.Wrapf(err, "postgres: acknowledge %s", id)
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT severity, acknowledged, COUNT(*) FROM anomalies GROUP BY severity, acknowledged`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	defer rows.Close()

	stats := &Stats{BySeverity: make(map[model.Severity]int)}
	for rows.Next() {
		var severity string
		var acked bool
		var count int
		if err := rows.Scan(&severity, &acked, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats")
		}
		stats.Total += count
		stats.BySeverity[model.Severity(severity)] += count
		if !acked {
			stats.Unacknowledged += count
		}
	}
	return stats, eris.Wrap(rows.Err(), "postgres: stats iterate")
}

func scanPostgresAnomaly(row pgx.Row) (*model.Anomaly, error) {
	var a model.Anomaly
	var anomalyType, severity, method string
	var dataPoint, metadata []byte

	err := row.Scan(&a.ID, &a.Timestamp, &a.EntityID, &a.EntityType,
		&anomalyType, &severity, &a.Score, &a.Confidence, &a.Description,
		&dataPoint, &method, &metadata, &a.Acknowledged)
	if err != nil {
		return nil, err
	}

	a.Type = model.AnomalyType(anomalyType)
	a.Severity = model.Severity(severity)
	a.DetectionMethod = model.DetectionMethod(method)

	if err := unmarshalPayloads(&a, dataPoint, metadata); err != nil {
		return nil, err
	}
	return &a, nil
}
