// Package ingest loads the business and demographics input tables.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// streamCSV reads CSV rows into a channel. The first row is sent to headerCh
// when non-nil and never to the row channel. Both channels close when the
// reader is exhausted or the context is cancelled; errors arrive on errCh.
func streamCSV(ctx context.Context, r io.Reader, headerCh chan<- []string) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1 // allow variable fields

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv read cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: read csv row")
				return
			}

			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			if first {
				first = false
				if headerCh != nil {
					select {
					case headerCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "ingest: csv read cancelled sending header")
						return
					}
				}
				continue
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv read cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// columnIndex resolves a column name in a header row, case-insensitively.
func columnIndex(header []string, name string) (int, bool) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i, true
		}
	}
	return 0, false
}
