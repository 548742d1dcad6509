package ingest

import (
	"context"
	"encoding/csv"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cohort-cli/internal/fetcher"
	"github.com/sells-group/cohort-cli/internal/model"
)

// StreamFunc starts a row producer, such as fetcher.StreamCSV.
type StreamFunc func(ctx context.Context) (<-chan []string, <-chan error)

// LoadRows drains a row stream whose first record is the header and decodes
// every data record. On error the producer is cancelled and drained.
func LoadRows(ctx context.Context, stream StreamFunc, opts DecodeOptions) ([]model.RawTransaction, error) {
	ctx, cancel := context.WithCancel(ctx)
	rowCh, errCh := stream(ctx)
	defer func() {
		cancel()
		for range rowCh { //nolint:revive // drain
		}
	}()

	var (
		dec *Decoder
		out []model.RawTransaction
	)
	for record := range rowCh {
		if dec == nil {
			d, err := NewDecoder(record, opts)
			if err != nil {
				return nil, err
			}
			dec = d
			continue
		}
		if isBlank(record) {
			continue
		}
		tx, err := dec.Decode(record)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}

	for err := range errCh {
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "ingest: load cancelled")
			}
			return nil, classifyStreamErr(err)
		}
	}

	if dec == nil {
		return nil, schemaErrorf("ingest: input has no header row")
	}
	return out, nil
}

// classifyStreamErr maps a producer failure to ErrSchema when the bytes were
// read but do not form a table, and to ErrAccess otherwise.
func classifyStreamErr(err error) error {
	var parseErr *csv.ParseError
	if errors.Is(err, fetcher.ErrFormat) || errors.As(err, &parseErr) {
		return schemaWrapf(err, "ingest: read rows")
	}
	return accessWrapf(err, "ingest: read rows")
}

// isBlank reports whether every field of a record is empty, as trailing
// spreadsheet rows often are.
func isBlank(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}
