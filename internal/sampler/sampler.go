// Package sampler draws uniformly random coordinates inside a bounding box.
package sampler

import (
	"math"
	"math/rand"
	"time"

	"github.com/rotisserie/eris"

	"github.com/stephenschott/affluence-cli/internal/model"
	"github.com/stephenschott/affluence-cli/internal/spatial"
)

// Sampler generates random coordinates with fixed-precision rounding so the
// values survive a round trip through the output file.
type Sampler struct {
	rng       *rand.Rand
	precision int
}

// New creates a Sampler. A zero seed selects a time-based seed; any other
// value makes the draw sequence reproducible.
func New(seed int64, precision int) *Sampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sampler{
		rng:       rand.New(rand.NewSource(seed)),
		precision: precision,
	}
}

// Sample draws count independent coordinates, each axis uniform within the
// box, rounded to the configured precision. A negative count is an
// InvalidArgument; zero returns an empty slice.
func (s *Sampler) Sample(count int, bbox spatial.BBox) ([]model.Coordinate, error) {
	if count < 0 {
		return nil, eris.Wrapf(model.ErrInvalidArgument, "sampler: negative sample count %d", count)
	}

	coords := make([]model.Coordinate, 0, count)
	for i := 0; i < count; i++ {
		coords = append(coords, model.Coordinate{
			Latitude:  roundTo(bbox.MinLat+s.rng.Float64()*(bbox.MaxLat-bbox.MinLat), s.precision),
			Longitude: roundTo(bbox.MinLon+s.rng.Float64()*(bbox.MaxLon-bbox.MinLon), s.precision),
		})
	}
	return coords, nil
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
