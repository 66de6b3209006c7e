package region

import (
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads neighborhood polygons from a shapefile and indexes them
// by the value of nameField (matched case-insensitively against the DBF
// attribute names). Shapes sharing a name are merged into one region.
func LoadShapefile(path, nameField string) (*Locator, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	nameIdx, ok := fieldIdx[strings.ToLower(nameField)]
	if !ok {
		return nil, eris.Errorf("region: shapefile %s has no %q attribute", path, nameField)
	}

	regions := make(map[string][]*geom.Polygon)
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly.NumParts == 0 || len(poly.Points) == 0 {
			skipped++
			continue
		}

		polys := shapePolygons(poly)
		if len(polys) == 0 {
			skipped++
			continue
		}
		regions[name] = append(regions[name], polys...)
	}

	if skipped > 0 {
		zap.L().Debug("region: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	if len(regions) == 0 {
		return nil, eris.Errorf("region: shapefile %s contains no usable polygons", path)
	}

	zap.L().Info("loaded region boundaries",
		zap.String("path", path),
		zap.Int("regions", len(regions)),
	)
	return NewLocator(regions), nil
}

// shapePolygons converts a shapefile polygon record into go-geom polygons.
// Shapefile winding rules apply: clockwise rings are shells, counterclockwise
// rings are holes belonging to the preceding shell.
func shapePolygons(p *shp.Polygon) []*geom.Polygon {
	var polys []*geom.Polygon
	var current *geom.Polygon

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 3 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if signedArea(flat) <= 0 || current == nil {
			// Shell (or a malformed leading hole, treated tolerantly as one).
			current = geom.NewPolygon(geom.XY)
			if err := current.Push(ring); err != nil {
				zap.L().Debug("region: skipping malformed shell ring", zap.Int32("part", i), zap.Error(err))
				current = nil
				continue
			}
			polys = append(polys, current)
			continue
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("region: skipping malformed hole ring", zap.Int32("part", i), zap.Error(err))
		}
	}

	return polys
}

// signedArea is the shoelace sum over a flat XY coordinate ring. Negative for
// clockwise rings, which the shapefile spec uses for outer shells.
func signedArea(flat []float64) float64 {
	n := len(flat) / 2
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		x1, y1 := flat[2*i], flat[2*i+1]
		j := (i + 1) % n
		x2, y2 := flat[2*j], flat[2*j+1]
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}
