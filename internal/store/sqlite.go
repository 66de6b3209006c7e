package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/stephenschott/affluence-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	params     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS points (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	idx          INTEGER NOT NULL,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	neighborhood TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	features     TEXT,
	demographics TEXT,
	computed_at  DATETIME,
	UNIQUE (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_points_run_status ON points(run_id, status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal run params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(paramsJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Params:    params,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, params, status, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	var paramsJSON string
	if err := row.Scan(&r.ID, &paramsJSON, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Errorf("sqlite: run %s not found", runID)
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal run params %s", runID)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, params, status, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var paramsJSON string
		if err := rows.Scan(&r.ID, &paramsJSON, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal run params %s", r.ID)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) InsertPendingPoints(ctx context.Context, runID string, points []model.StoredPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert points")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO points (id, run_id, idx, latitude, longitude, neighborhood, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert point")
	}
	defer stmt.Close()

	for _, p := range points {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx,
			id, runID, p.Index, p.Coordinate.Latitude, p.Coordinate.Longitude,
			p.Region, string(model.PointStatusPending),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert point %d", p.Index)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert points")
}

func (s *SQLiteStore) PendingPoints(ctx context.Context, runID string) ([]model.StoredPoint, error) {
	return s.pointsByStatus(ctx, runID, model.PointStatusPending)
}

func (s *SQLiteStore) CompletedPoints(ctx context.Context, runID string) ([]model.StoredPoint, error) {
	return s.pointsByStatus(ctx, runID, model.PointStatusComplete)
}

func (s *SQLiteStore) pointsByStatus(ctx context.Context, runID string, status model.PointStatus) ([]model.StoredPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, idx, latitude, longitude, neighborhood, status, features, demographics, computed_at
		 FROM points WHERE run_id = ? AND status = ? ORDER BY idx`,
		runID, string(status),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s points", status)
	}
	defer rows.Close()

	var points []model.StoredPoint
	for rows.Next() {
		var p model.StoredPoint
		var features, demographics sql.NullString
		var computedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.RunID, &p.Index, &p.Coordinate.Latitude, &p.Coordinate.Longitude,
			&p.Region, &p.Status, &features, &demographics, &computedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point")
		}
		if features.Valid {
			if err := json.Unmarshal([]byte(features.String), &p.Features); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal features for point %s", p.ID)
			}
		}
		if demographics.Valid {
			if err := json.Unmarshal([]byte(demographics.String), &p.Demographics); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal demographics for point %s", p.ID)
			}
		}
		if computedAt.Valid {
			t := computedAt.Time
			p.ComputedAt = &t
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: iterate points")
}

func (s *SQLiteStore) CompletePoint(ctx context.Context, pointID string, features map[string]float64, demographics *model.RegionDemographics) error {
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal features")
	}
	demoJSON, err := json.Marshal(demographics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal demographics")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE points SET status = ?, features = ?, demographics = ?, computed_at = ? WHERE id = ?`,
		string(model.PointStatusComplete), string(featuresJSON), string(demoJSON), time.Now().UTC(), pointID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete point %s", pointID)
	}
	return checkRowsAffected(res, "point", pointID)
}

func (s *SQLiteStore) DropPoint(ctx context.Context, pointID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE points SET status = ?, computed_at = ? WHERE id = ?`,
		string(model.PointStatusDropped), time.Now().UTC(), pointID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: drop point %s", pointID)
	}
	return checkRowsAffected(res, "point", pointID)
}

func (s *SQLiteStore) PointCounts(ctx context.Context, runID string) (map[model.PointStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM points WHERE run_id = ? GROUP BY status`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: point counts %s", runID)
	}
	defer rows.Close()

	counts := make(map[model.PointStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point count")
		}
		counts[model.PointStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate point counts")
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", kind, id)
	}
	return nil
}
