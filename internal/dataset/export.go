package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/stephenschott/affluence-cli/internal/model"
)

// Header returns the output column order: coordinates, neighborhood, one
// proportion column per radius and tier, then the three demographic targets.
func Header(radii []float64, tiers []int) []string {
	header := []string{"latitude", "longitude", "neighborhood"}
	for _, radius := range radii {
		for _, tier := range tiers {
			header = append(header, model.FeatureName(radius, tier))
		}
	}
	return append(header, "median income", "median rent", "median home value")
}

// WriteCSV streams the points to w as CSV in the Header column order. Floats
// are printed with minimal digits so values round-trip through re-parsing.
func WriteCSV(w io.Writer, points []model.SampledPoint, radii []float64, tiers []int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(radii, tiers)); err != nil {
		return eris.Wrap(err, "dataset: write csv header")
	}

	row := make([]string, 0, len(radii)*len(tiers)+6)
	for _, p := range points {
		if p.Demographics == nil || p.Demographics.Figures == nil {
			return eris.Errorf("dataset: point %d in %q has no demographics, refusing to export", p.Index, p.Region)
		}
		row = row[:0]
		row = append(row,
			formatFloat(p.Coordinate.Latitude),
			formatFloat(p.Coordinate.Longitude),
			p.Region,
		)
		for _, radius := range radii {
			for _, tier := range tiers {
				row = append(row, formatFloat(p.Features[model.FeatureName(radius, tier)]))
			}
		}
		fig := p.Demographics.Figures
		row = append(row,
			formatFloat(fig.MedianIncome),
			formatFloat(fig.MedianRent),
			formatFloat(fig.MedianHomeValue),
		)
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "dataset: write csv row %d", p.Index)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "dataset: flush csv")
}

// ExportFile writes the points to path, creating or truncating it.
func ExportFile(path string, points []model.SampledPoint, radii []float64, tiers []int) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	if err := WriteCSV(f, points, radii, tiers); err != nil {
		f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "dataset: close %s", path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
