// Package region maps coordinates to named neighborhood polygons loaded from
// a boundary shapefile.
package region

import (
	"sort"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/stephenschott/affluence-cli/internal/model"
)

// Locator answers point-in-polygon lookups against a fixed set of named
// regions. A negative lookup is the expected NotFound outcome for points in
// water or outside the study area, not an error. Locator is read-only after
// construction and safe for concurrent use.
type Locator struct {
	regions []namedRegion
}

type namedRegion struct {
	name     string
	bounds   *geom.Bounds
	polygons []*geom.Polygon
}

// NewLocator builds a Locator from named polygon sets. Region polygons are
// XY layout with longitude as X and latitude as Y.
func NewLocator(regions map[string][]*geom.Polygon) *Locator {
	l := &Locator{regions: make([]namedRegion, 0, len(regions))}
	for name, polys := range regions {
		if len(polys) == 0 {
			continue
		}
		bounds := geom.NewBounds(geom.XY)
		for _, p := range polys {
			bounds.Extend(p)
		}
		l.regions = append(l.regions, namedRegion{name: name, bounds: bounds, polygons: polys})
	}
	// Deterministic lookup order keeps Locate idempotent even if a point sits
	// exactly on a shared boundary of two regions.
	sort.Slice(l.regions, func(i, j int) bool { return l.regions[i].name < l.regions[j].name })
	return l
}

// Locate returns the name of the region containing the coordinate, or
// ("", false) when the point falls outside every known region.
func (l *Locator) Locate(c model.Coordinate) (string, bool) {
	pt := geom.Coord{c.Longitude, c.Latitude}
	for _, r := range l.regions {
		if !r.bounds.OverlapsPoint(geom.XY, pt) {
			continue
		}
		for _, p := range r.polygons {
			if polygonContains(p, pt) {
				return r.name, true
			}
		}
	}
	return "", false
}

// Names returns the region names in lookup order.
func (l *Locator) Names() []string {
	names := make([]string, len(l.regions))
	for i, r := range l.regions {
		names[i] = r.name
	}
	return names
}

// Len returns the number of distinct regions.
func (l *Locator) Len() int {
	return len(l.regions)
}

// polygonContains tests shell containment minus holes. Ring 0 is the shell;
// subsequent rings are holes.
func polygonContains(p *geom.Polygon, pt geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(p.Layout(), pt, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(p.Layout(), pt, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}
