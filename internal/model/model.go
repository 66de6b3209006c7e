// Package model defines the domain types shared across the dataset pipeline.
package model

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidArgument is the sentinel for caller errors: negative sample
// counts, malformed coordinate strings, out-of-range price tiers.
var ErrInvalidArgument = eris.New("invalid argument")

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// BusinessRecord is one business from the reference dataset. Region is empty
// until the record has been assigned to a neighborhood polygon; records that
// resolve to no neighborhood are dropped before any metric computation.
type BusinessRecord struct {
	Coordinate Coordinate `json:"coordinate"`
	PriceTier  int        `json:"price_tier"`
	Region     string     `json:"region,omitempty"`
}

// DemographicFigures holds the externally supplied per-neighborhood medians.
type DemographicFigures struct {
	MedianRent      float64 `json:"median_rent"`
	MedianHomeValue float64 `json:"median_home_value"`
	MedianIncome    float64 `json:"median_income"`
}

// RegionDemographics is the per-neighborhood reference row: the four tier
// proportions computed from business records plus the external medians.
// Figures is nil when the demographics table has no row for the region; that
// is distinct from a row whose values are genuinely zero.
type RegionDemographics struct {
	Region         string              `json:"region"`
	Figures        *DemographicFigures `json:"figures,omitempty"`
	TierProportion map[int]float64     `json:"tier_proportion"`
}

// SampledPoint is one output row: a sampled coordinate, its neighborhood,
// the radius×tier proportion features, and the joined demographics.
// Demographics stays nil until the join succeeds.
type SampledPoint struct {
	Index        int                 `json:"index"`
	Coordinate   Coordinate          `json:"coordinate"`
	Region       string              `json:"region"`
	Features     map[string]float64  `json:"features"`
	Demographics *RegionDemographics `json:"demographics,omitempty"`
}

// FeatureName returns the column name for a radius×tier proportion feature,
// e.g. "0.5mi 2 dollar". The radius is printed with minimal digits so the
// name round-trips through the output header.
func FeatureName(radiusMiles float64, tier int) string {
	return strconv.FormatFloat(radiusMiles, 'f', -1, 64) + "mi " + strconv.Itoa(tier) + " dollar"
}

// RunStatus tracks the lifecycle of a generation run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams captures the sampling constants a run was started with, so a
// resumed run computes features identically to the original.
type RunParams struct {
	SampleCount int       `json:"sample_count"`
	Radii       []float64 `json:"radii"`
	Tiers       []int     `json:"tiers"`
	Precision   int       `json:"precision"`
	Seed        int64     `json:"seed"`
}

// Run is one dataset generation run.
type Run struct {
	ID        string    `json:"id"`
	Params    RunParams `json:"params"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PointStatus tracks the lifecycle of one checkpointed sample point.
type PointStatus string

const (
	PointStatusPending  PointStatus = "pending"
	PointStatusComplete PointStatus = "complete"
	PointStatusDropped  PointStatus = "dropped"
)

// StoredPoint is the persisted form of a sampled point. Pending rows carry
// only the coordinate and neighborhood; features and demographics are filled
// when the worker completes the row.
type StoredPoint struct {
	ID           string              `json:"id"`
	RunID        string              `json:"run_id"`
	Index        int                 `json:"index"`
	Coordinate   Coordinate          `json:"coordinate"`
	Region       string              `json:"region"`
	Status       PointStatus         `json:"status"`
	Features     map[string]float64  `json:"features,omitempty"`
	Demographics *RegionDemographics `json:"demographics,omitempty"`
	ComputedAt   *time.Time          `json:"computed_at,omitempty"`
}

// Sampled converts a completed stored point back to its in-memory form.
func (p *StoredPoint) Sampled() SampledPoint {
	return SampledPoint{
		Index:        p.Index,
		Coordinate:   p.Coordinate,
		Region:       p.Region,
		Features:     p.Features,
		Demographics: p.Demographics,
	}
}
