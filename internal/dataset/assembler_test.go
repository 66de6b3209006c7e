package dataset

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/stephenschott/affluence-cli/internal/config"
	"github.com/stephenschott/affluence-cli/internal/model"
	"github.com/stephenschott/affluence-cli/internal/region"
	"github.com/stephenschott/affluence-cli/internal/store"
)

func square(minLon, minLat, maxLon, maxLat float64) *geom.Polygon {
	p := geom.NewPolygon(geom.XY)
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		minLon, minLat,
		maxLon, minLat,
		maxLon, maxLat,
		minLon, maxLat,
		minLon, minLat,
	})
	if err := p.Push(ring); err != nil {
		panic(err)
	}
	return p
}

func testLocator(t *testing.T) *region.Locator {
	t.Helper()
	return region.NewLocator(map[string][]*geom.Polygon{
		"Shaw": {square(-77.04, 38.90, -77.02, 38.92)},
	})
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func testConfig() config.DatasetConfig {
	return config.DatasetConfig{
		SampleCount:           25,
		Radii:                 []float64{0.5, 1.0},
		Tiers:                 []int{1, 2, 3, 4},
		Precision:             6,
		Seed:                  42,
		Concurrency:           2,
		CheckpointEvery:       10,
		OnMissingDemographics: config.OnMissingFail,
	}
}

// Businesses strictly inside the Shaw square, so the sampling box and every
// sampled point stay inside it too.
func testBusinesses() []model.BusinessRecord {
	return []model.BusinessRecord{
		{Coordinate: model.Coordinate{Latitude: 38.905, Longitude: -77.035}, PriceTier: 1},
		{Coordinate: model.Coordinate{Latitude: 38.906, Longitude: -77.034}, PriceTier: 2},
		{Coordinate: model.Coordinate{Latitude: 38.914, Longitude: -77.026}, PriceTier: 2},
		{Coordinate: model.Coordinate{Latitude: 38.915, Longitude: -77.025}, PriceTier: 4},
	}
}

func TestAssemblerRun(t *testing.T) {
	st := testStore(t)
	cfg := testConfig()
	a := New(cfg, testLocator(t), st)

	figures := map[string]model.DemographicFigures{
		"Shaw": {MedianRent: 2200, MedianHomeValue: 750000, MedianIncome: 104000},
	}
	result, err := a.Run(context.Background(), testBusinesses(), figures)
	require.NoError(t, err)

	assert.Equal(t, cfg.SampleCount, result.Sampled)
	assert.Zero(t, result.Unlocated)
	assert.Zero(t, result.Dropped)
	require.Len(t, result.Points, cfg.SampleCount)

	run, err := st.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, cfg.Seed, run.Params.Seed)

	counts, err := st.PointCounts(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, cfg.SampleCount, counts[model.PointStatusComplete])
	assert.Zero(t, counts[model.PointStatusPending])

	for i, p := range result.Points {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, "Shaw", p.Region)
		require.NotNil(t, p.Demographics)
		require.NotNil(t, p.Demographics.Figures)
		assert.Equal(t, 104000.0, p.Demographics.Figures.MedianIncome)
		require.Len(t, p.Features, len(cfg.Radii)*len(cfg.Tiers))
		for _, radius := range cfg.Radii {
			for _, tier := range cfg.Tiers {
				v, ok := p.Features[model.FeatureName(radius, tier)]
				require.True(t, ok)
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestAssemblerRunDeterministic(t *testing.T) {
	figures := map[string]model.DemographicFigures{
		"Shaw": {MedianRent: 2200, MedianHomeValue: 750000, MedianIncome: 104000},
	}

	first, err := New(testConfig(), testLocator(t), testStore(t)).Run(context.Background(), testBusinesses(), figures)
	require.NoError(t, err)
	second, err := New(testConfig(), testLocator(t), testStore(t)).Run(context.Background(), testBusinesses(), figures)
	require.NoError(t, err)

	require.Len(t, second.Points, len(first.Points))
	for i := range first.Points {
		assert.Equal(t, first.Points[i].Coordinate, second.Points[i].Coordinate)
		assert.Equal(t, first.Points[i].Features, second.Points[i].Features)
	}
}

func TestAssemblerMissingDemographicsFail(t *testing.T) {
	st := testStore(t)
	a := New(testConfig(), testLocator(t), st)

	// No figures for Shaw at all, so every sampled point trips the policy.
	result, err := a.Run(context.Background(), testBusinesses(), nil)
	require.Error(t, err)
	assert.Nil(t, result)

	var missing *MissingDemographicsError
	require.True(t, eris.As(err, &missing))
	assert.Equal(t, "Shaw", missing.Region)

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
}

func TestAssemblerMissingDemographicsDrop(t *testing.T) {
	cfg := testConfig()
	cfg.OnMissingDemographics = config.OnMissingDrop
	st := testStore(t)
	a := New(cfg, testLocator(t), st)

	result, err := a.Run(context.Background(), testBusinesses(), nil)
	require.NoError(t, err)

	assert.Empty(t, result.Points)
	assert.Equal(t, cfg.SampleCount, result.Dropped)

	counts, err := st.PointCounts(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, cfg.SampleCount, counts[model.PointStatusDropped])
	assert.Zero(t, counts[model.PointStatusComplete])
}

func TestAssemblerNoLocatedBusinesses(t *testing.T) {
	a := New(testConfig(), testLocator(t), testStore(t))

	// All records fall outside the Shaw square.
	outside := []model.BusinessRecord{
		{Coordinate: model.Coordinate{Latitude: 40.7, Longitude: -74.0}, PriceTier: 1},
	}
	_, err := a.Run(context.Background(), outside, nil)
	require.Error(t, err)
}

func TestAssemblerResume(t *testing.T) {
	st := testStore(t)
	cfg := testConfig()
	a := New(cfg, testLocator(t), st)

	figures := map[string]model.DemographicFigures{
		"Shaw": {MedianRent: 2200, MedianHomeValue: 750000, MedianIncome: 104000},
	}

	// Simulate an interrupted run: pending points persisted, never processed.
	ctx := context.Background()
	params := model.RunParams{SampleCount: 3, Radii: cfg.Radii, Tiers: cfg.Tiers, Precision: cfg.Precision, Seed: cfg.Seed}
	run, err := st.CreateRun(ctx, params)
	require.NoError(t, err)
	pending := []model.StoredPoint{
		{Index: 0, Coordinate: model.Coordinate{Latitude: 38.907, Longitude: -77.033}, Region: "Shaw"},
		{Index: 1, Coordinate: model.Coordinate{Latitude: 38.910, Longitude: -77.030}, Region: "Shaw"},
		{Index: 2, Coordinate: model.Coordinate{Latitude: 38.913, Longitude: -77.027}, Region: "Shaw"},
	}
	require.NoError(t, st.InsertPendingPoints(ctx, run.ID, pending))

	result, err := a.Resume(ctx, run.ID, testBusinesses(), figures)
	require.NoError(t, err)
	require.Len(t, result.Points, 3)
	for i, p := range result.Points {
		assert.Equal(t, i, p.Index)
		require.NotNil(t, p.Demographics)
	}

	// Resuming a finished run is refused.
	_, err = a.Resume(ctx, run.ID, testBusinesses(), figures)
	require.Error(t, err)
}

func TestComputeFeatures(t *testing.T) {
	businesses := testBusinesses()
	center := model.Coordinate{Latitude: 38.9055, Longitude: -77.0345}

	// The first two records are within 0.1 miles of center, the rest are
	// roughly 0.8 miles north-east.
	features := ComputeFeatures(center, businesses, []float64{0.5, 1.0}, []int{1, 2, 3, 4})
	require.Len(t, features, 8)

	assert.InDelta(t, 0.5, features[model.FeatureName(0.5, 1)], 1e-9)
	assert.InDelta(t, 0.5, features[model.FeatureName(0.5, 2)], 1e-9)
	assert.Zero(t, features[model.FeatureName(0.5, 4)])

	assert.InDelta(t, 0.25, features[model.FeatureName(1.0, 1)], 1e-9)
	assert.InDelta(t, 0.5, features[model.FeatureName(1.0, 2)], 1e-9)
	assert.InDelta(t, 0.25, features[model.FeatureName(1.0, 4)], 1e-9)
}
