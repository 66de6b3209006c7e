package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephenschott/affluence-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testParams() model.RunParams {
	return model.RunParams{
		SampleCount: 10,
		Radii:       []float64{0.5, 1.0},
		Tiers:       []int{1, 2, 3, 4},
		Precision:   6,
		Seed:        42,
	}
}

func TestSQLiteRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	run, err := s.CreateRun(ctx, testParams())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Equal(t, run.Params, got.Params)

	runs, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusRunning})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestSQLiteGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLitePointCheckpointing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	run, err := s.CreateRun(ctx, testParams())
	require.NoError(t, err)

	points := []model.StoredPoint{
		{Index: 0, Coordinate: model.Coordinate{Latitude: 38.90, Longitude: -77.02}, Region: "Shaw"},
		{Index: 1, Coordinate: model.Coordinate{Latitude: 38.89, Longitude: -77.00}, Region: "Capitol"},
		{Index: 2, Coordinate: model.Coordinate{Latitude: 38.91, Longitude: -77.03}, Region: "Shaw"},
	}
	require.NoError(t, s.InsertPendingPoints(ctx, run.ID, points))

	pending, err := s.PendingPoints(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, 0, pending[0].Index)
	assert.Equal(t, "Shaw", pending[0].Region)
	assert.Nil(t, pending[0].Features)

	// Complete the first two points.
	features := map[string]float64{"0.5mi 1 dollar": 0.25, "1mi 1 dollar": 0.5}
	demo := &model.RegionDemographics{
		Region:         "Shaw",
		Figures:        &model.DemographicFigures{MedianRent: 2100, MedianHomeValue: 750000, MedianIncome: 95000},
		TierProportion: map[int]float64{1: 0.5, 2: 0.5, 3: 0, 4: 0},
	}
	require.NoError(t, s.CompletePoint(ctx, pending[0].ID, features, demo))
	require.NoError(t, s.CompletePoint(ctx, pending[1].ID, features, demo))

	// Drop the third.
	require.NoError(t, s.DropPoint(ctx, pending[2].ID))

	remaining, err := s.PendingPoints(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	completed, err := s.CompletedPoints(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, features, completed[0].Features)
	require.NotNil(t, completed[0].Demographics)
	assert.Equal(t, "Shaw", completed[0].Demographics.Region)
	require.NotNil(t, completed[0].Demographics.Figures)
	assert.Equal(t, 2100.0, completed[0].Demographics.Figures.MedianRent)
	assert.NotNil(t, completed[0].ComputedAt)

	counts, err := s.PointCounts(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.PointStatusComplete])
	assert.Equal(t, 1, counts[model.PointStatusDropped])
	assert.Zero(t, counts[model.PointStatusPending])
}

func TestSQLiteCompletePoint_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.CompletePoint(context.Background(), "missing", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
