// Package spatial implements the distance and proportion primitives for the
// dataset pipeline: great-circle distance, radius filtering, and price-tier
// proportion aggregation.
package spatial

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/stephenschott/affluence-cli/internal/model"
)

// earthRadiusMiles is the mean earth radius used by the haversine formula.
const earthRadiusMiles = 3958.8

// DistanceMiles returns the haversine great-circle distance between two
// coordinates in statute miles. The formula is fixed rather than configurable:
// feature values are only compared within a run, so the single compiled-in
// formula guarantees the reference and sampled proportions stay commensurate.
func DistanceMiles(a, b model.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMiles * c
}

// WithinRadius returns the subsequence of records whose great-circle distance
// from center is at most radiusMiles. Linear scan; this is the dominant cost
// of a run and callers parallelize over independent centers.
func WithinRadius(center model.Coordinate, radiusMiles float64, records []model.BusinessRecord) []model.BusinessRecord {
	var within []model.BusinessRecord
	for _, r := range records {
		if DistanceMiles(center, r.Coordinate) <= radiusMiles {
			within = append(within, r)
		}
	}
	return within
}

// Proportion returns the fraction of records whose price tier equals tier.
// An empty input returns 0 exactly: downstream regression treats 0 as a valid
// feature meaning "no business presence observed nearby", so this must never
// become NaN or an error.
func Proportion(records []model.BusinessRecord, tier int) float64 {
	if len(records) == 0 {
		return 0
	}
	var n int
	for _, r := range records {
		if r.PriceTier == tier {
			n++
		}
	}
	return float64(n) / float64(len(records))
}

// BBox is a geographic bounding box.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether the coordinate falls inside the box, inclusive.
func (b BBox) Contains(c model.Coordinate) bool {
	return c.Latitude >= b.MinLat && c.Latitude <= b.MaxLat &&
		c.Longitude >= b.MinLon && c.Longitude <= b.MaxLon
}

// BoundsOf returns the bounding box spanned by the records' coordinates.
func BoundsOf(records []model.BusinessRecord) (BBox, error) {
	if len(records) == 0 {
		return BBox{}, eris.New("spatial: bounds of empty record set")
	}
	b := BBox{
		MinLat: records[0].Coordinate.Latitude,
		MaxLat: records[0].Coordinate.Latitude,
		MinLon: records[0].Coordinate.Longitude,
		MaxLon: records[0].Coordinate.Longitude,
	}
	for _, r := range records[1:] {
		b.MinLat = math.Min(b.MinLat, r.Coordinate.Latitude)
		b.MaxLat = math.Max(b.MaxLat, r.Coordinate.Latitude)
		b.MinLon = math.Min(b.MinLon, r.Coordinate.Longitude)
		b.MaxLon = math.Max(b.MaxLon, r.Coordinate.Longitude)
	}
	return b, nil
}
