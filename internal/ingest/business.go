package ingest

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stephenschott/affluence-cli/internal/model"
)

// Business dataset column names. Remaining columns (name, category, rating)
// are carried by the source file but ignored here.
const (
	businessCoordinatesColumn = "coordinates"
	businessPriceColumn       = "price"
)

// LoadBusinesses reads the business CSV. The coordinates column holds a
// bracketed "[lat, lon]" pair; the price column holds the tier. A tier
// outside tiers or a malformed coordinate fails the load with
// InvalidArgument: partial reference data would silently skew every
// proportion downstream.
func LoadBusinesses(ctx context.Context, path string, tiers []int) ([]model.BusinessRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open business csv %s", path)
	}
	defer func() { _ = f.Close() }()

	// Cancel on any early return so the reader goroutine is not left blocked
	// on a full row channel.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := streamCSV(ctx, f, headerCh)

	header, ok := <-headerCh
	if !ok {
		if err := <-errCh; err != nil {
			return nil, err
		}
		return nil, eris.Errorf("ingest: business csv %s is empty", path)
	}

	coordIdx, ok := columnIndex(header, businessCoordinatesColumn)
	if !ok {
		return nil, eris.Errorf("ingest: business csv %s has no %q column", path, businessCoordinatesColumn)
	}
	priceIdx, ok := columnIndex(header, businessPriceColumn)
	if !ok {
		return nil, eris.Errorf("ingest: business csv %s has no %q column", path, businessPriceColumn)
	}

	valid := make(map[int]bool, len(tiers))
	for _, t := range tiers {
		valid[t] = true
	}

	var records []model.BusinessRecord
	line := 1
	for row := range rowCh {
		line++
		if len(row) <= coordIdx || len(row) <= priceIdx {
			return nil, eris.Wrapf(model.ErrInvalidArgument, "ingest: business csv line %d has %d fields", line, len(row))
		}

		coord, err := model.ParseCoordinatePair(row[coordIdx])
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: business csv line %d", line)
		}

		tier, err := parseTier(row[priceIdx])
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: business csv line %d", line)
		}
		if !valid[tier] {
			return nil, eris.Wrapf(model.ErrInvalidArgument, "ingest: business csv line %d: price tier %d out of range", line, tier)
		}

		records = append(records, model.BusinessRecord{Coordinate: coord, PriceTier: tier})
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	zap.L().Info("loaded business records",
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return records, nil
}
