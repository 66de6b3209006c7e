package dataset

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephenschott/affluence-cli/internal/model"
)

func TestHeader(t *testing.T) {
	header := Header([]float64{0.5, 1.0}, []int{1, 2})
	assert.Equal(t, []string{
		"latitude", "longitude", "neighborhood",
		"0.5mi 1 dollar", "0.5mi 2 dollar",
		"1mi 1 dollar", "1mi 2 dollar",
		"median income", "median rent", "median home value",
	}, header)
}

func TestWriteCSV(t *testing.T) {
	radii := []float64{0.5, 1.0}
	tiers := []int{1, 2}
	demo := &model.RegionDemographics{
		Region:  "Shaw",
		Figures: &model.DemographicFigures{MedianRent: 2237.5, MedianHomeValue: 750000, MedianIncome: 104000},
	}
	points := []model.SampledPoint{
		{
			Index:      0,
			Coordinate: model.Coordinate{Latitude: 38.912345, Longitude: -77.031234},
			Region:     "Shaw",
			Features: map[string]float64{
				"0.5mi 1 dollar": 0.25,
				"0.5mi 2 dollar": 0.75,
				"1mi 1 dollar":   0.2,
				"1mi 2 dollar":   0.6,
			},
			Demographics: demo,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, points, radii, tiers))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Header(radii, tiers), rows[0])
	assert.Equal(t, []string{
		"38.912345", "-77.031234", "Shaw",
		"0.25", "0.75", "0.2", "0.6",
		"104000", "2237.5", "750000",
	}, rows[1])

	// Every numeric cell must parse back to the exact value.
	lat, err := strconv.ParseFloat(rows[1][0], 64)
	require.NoError(t, err)
	assert.Equal(t, 38.912345, lat)
	rent, err := strconv.ParseFloat(rows[1][8], 64)
	require.NoError(t, err)
	assert.Equal(t, 2237.5, rent)
}

func TestWriteCSVMissingDemographics(t *testing.T) {
	points := []model.SampledPoint{
		{Index: 0, Region: "Shaw", Features: map[string]float64{}},
	}
	var buf bytes.Buffer
	err := WriteCSV(&buf, points, []float64{0.5}, []int{1})
	require.Error(t, err)
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "dataset.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	demo := &model.RegionDemographics{
		Region:  "Shaw",
		Figures: &model.DemographicFigures{MedianRent: 2200, MedianHomeValue: 750000, MedianIncome: 104000},
	}
	points := []model.SampledPoint{
		{
			Coordinate:   model.Coordinate{Latitude: 38.91, Longitude: -77.03},
			Region:       "Shaw",
			Features:     map[string]float64{"0.5mi 1 dollar": 1},
			Demographics: demo,
		},
	}
	require.NoError(t, ExportFile(path, points, []float64{0.5}, []int{1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "latitude,longitude,neighborhood")
	assert.Contains(t, string(data), "38.91,-77.03,Shaw,1,104000,2200,750000")
}
