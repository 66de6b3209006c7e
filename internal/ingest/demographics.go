package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	xlsx "github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/stephenschott/affluence-cli/internal/model"
)

// Demographics table column names, matched case-insensitively.
const (
	demoRegionColumn    = "neighborhood"
	demoRentColumn      = "median rent"
	demoHomeValueColumn = "median home value"
	demoIncomeColumn    = "median income"
)

// LoadDemographics reads the per-neighborhood demographics table, keyed by
// neighborhood display name. Files ending in .xlsx are read as spreadsheets;
// anything else is treated as CSV.
func LoadDemographics(ctx context.Context, path string) (map[string]model.DemographicFigures, error) {
	var header []string
	var rows [][]string
	var err error

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		header, rows, err = readXLSX(path)
	} else {
		header, rows, err = readCSV(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, eris.Errorf("ingest: demographics table %s is empty", path)
	}

	regionIdx, ok := columnIndex(header, demoRegionColumn)
	if !ok {
		return nil, eris.Errorf("ingest: demographics table %s has no %q column", path, demoRegionColumn)
	}
	rentIdx, ok := columnIndex(header, demoRentColumn)
	if !ok {
		return nil, eris.Errorf("ingest: demographics table %s has no %q column", path, demoRentColumn)
	}
	valueIdx, ok := columnIndex(header, demoHomeValueColumn)
	if !ok {
		return nil, eris.Errorf("ingest: demographics table %s has no %q column", path, demoHomeValueColumn)
	}
	incomeIdx, ok := columnIndex(header, demoIncomeColumn)
	if !ok {
		return nil, eris.Errorf("ingest: demographics table %s has no %q column", path, demoIncomeColumn)
	}

	figures := make(map[string]model.DemographicFigures, len(rows))
	for i, row := range rows {
		line := i + 2 // 1-based, after the header
		maxIdx := regionIdx
		for _, idx := range []int{rentIdx, valueIdx, incomeIdx} {
			if idx > maxIdx {
				maxIdx = idx
			}
		}
		if len(row) <= maxIdx {
			return nil, eris.Errorf("ingest: demographics table %s line %d has %d fields", path, line, len(row))
		}

		region := strings.TrimSpace(row[regionIdx])
		if region == "" {
			continue
		}

		rent, err := parseDollarAmount(row[rentIdx])
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: demographics table %s line %d rent", path, line)
		}
		value, err := parseDollarAmount(row[valueIdx])
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: demographics table %s line %d home value", path, line)
		}
		income, err := parseDollarAmount(row[incomeIdx])
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: demographics table %s line %d income", path, line)
		}

		figures[region] = model.DemographicFigures{
			MedianRent:      rent,
			MedianHomeValue: value,
			MedianIncome:    income,
		}
	}

	zap.L().Info("loaded demographics",
		zap.String("path", path),
		zap.Int("regions", len(figures)),
	)
	return figures, nil
}

func readCSV(ctx context.Context, path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: open demographics csv %s", path)
	}
	defer func() { _ = f.Close() }()

	headerCh := make(chan []string, 1)
	rowCh, errCh := streamCSV(ctx, f, headerCh)

	header, ok := <-headerCh
	if !ok {
		if err := <-errCh; err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}

func readXLSX(path string) ([]string, [][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: open demographics xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.Errorf("ingest: demographics xlsx %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	var header []string
	var rows [][]string
	for i, row := range sheet.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			cells = append(cells, strings.TrimSpace(cell.String()))
		}
		if i == 0 {
			header = cells
			continue
		}
		rows = append(rows, cells)
	}
	return header, rows, nil
}

// parseDollarAmount reads a numeric cell, tolerating "$1,234" formatting.
func parseDollarAmount(s string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if cleaned == "" {
		return 0, eris.Wrap(model.ErrInvalidArgument, "ingest: empty dollar amount")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidArgument, "ingest: dollar amount %q is not numeric", s)
	}
	return v, nil
}
