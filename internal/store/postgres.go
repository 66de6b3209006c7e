package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/stephenschott/affluence-cli/internal/db"
	"github.com/stephenschott/affluence-cli/internal/model"
)

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
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

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	params     JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS points (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	idx          INTEGER NOT NULL,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	neighborhood TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	features     JSONB,
	demographics JSONB,
	computed_at  TIMESTAMPTZ,
	UNIQUE (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_points_run_status ON points(run_id, status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal run params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, string(paramsJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Params:    params,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var paramsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, params, status, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &paramsJSON, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: run %s not found", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal run params %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, params, status, created_at, updated_at FROM runs`
	var args []any

	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var paramsJSON []byte
		if err := rows.Scan(&r.ID, &paramsJSON, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(paramsJSON, &r.Params); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal run params %s", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) InsertPendingPoints(ctx context.Context, runID string, points []model.StoredPoint) error {
	for _, p := range points {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO points (id, run_id, idx, latitude, longitude, neighborhood, status) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, runID, p.Index, p.Coordinate.Latitude, p.Coordinate.Longitude,
			p.Region, string(model.PointStatusPending),
		); err != nil {
			return eris.Wrapf(err, "postgres: insert point %d", p.Index)
		}
	}
	return nil
}

func (s *PostgresStore) PendingPoints(ctx context.Context, runID string) ([]model.StoredPoint, error) {
	return s.pointsByStatus(ctx, runID, model.PointStatusPending)
}

func (s *PostgresStore) CompletedPoints(ctx context.Context, runID string) ([]model.StoredPoint, error) {
	return s.pointsByStatus(ctx, runID, model.PointStatusComplete)
}

func (s *PostgresStore) pointsByStatus(ctx context.Context, runID string, status model.PointStatus) ([]model.StoredPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, idx, latitude, longitude, neighborhood, status, features, demographics, computed_at
		 FROM points WHERE run_id = $1 AND status = $2 ORDER BY idx`,
		runID, string(status),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s points", status)
	}
	defer rows.Close()

	var points []model.StoredPoint
	for rows.Next() {
		var p model.StoredPoint
		var features, demographics []byte
		var computedAt *time.Time
		if err := rows.Scan(&p.ID, &p.RunID, &p.Index, &p.Coordinate.Latitude, &p.Coordinate.Longitude,
			&p.Region, &p.Status, &features, &demographics, &computedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		if len(features) > 0 {
			if err := json.Unmarshal(features, &p.Features); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal features for point %s", p.ID)
			}
		}
		if len(demographics) > 0 {
			if err := json.Unmarshal(demographics, &p.Demographics); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal demographics for point %s", p.ID)
			}
		}
		p.ComputedAt = computedAt
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: iterate points")
}

func (s *PostgresStore) CompletePoint(ctx context.Context, pointID string, features map[string]float64, demographics *model.RegionDemographics) error {
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal features")
	}
	demoJSON, err := json.Marshal(demographics)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal demographics")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE points SET status = $1, features = $2, demographics = $3, computed_at = $4 WHERE id = $5`,
		string(model.PointStatusComplete), string(featuresJSON), string(demoJSON), time.Now().UTC(), pointID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete point %s", pointID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: point %s not found", pointID)
	}
	return nil
}

func (s *PostgresStore) DropPoint(ctx context.Context, pointID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE points SET status = $1, computed_at = $2 WHERE id = $3`,
		string(model.PointStatusDropped), time.Now().UTC(), pointID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: drop point %s", pointID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: point %s not found", pointID)
	}
	return nil
}

func (s *PostgresStore) PointCounts(ctx context.Context, runID string) (map[model.PointStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM points WHERE run_id = $1 GROUP BY status`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: point counts %s", runID)
	}
	defer rows.Close()

	counts := make(map[model.PointStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point count")
		}
		counts[model.PointStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate point counts")
}
