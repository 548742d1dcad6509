// Package fetcher reads tabular transaction exports (CSV, XLSX, ZIP) and
// downloads them from HTTP and FTP locations.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune   // default ','
	Encoding   string // WHATWG label, e.g. "latin1"; empty or "utf-8" reads bytes as is
	Comment    rune   // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// DecodeReader wraps r so its bytes are decoded from the named charset to
// UTF-8. Empty and "utf-8" labels return r unchanged.
func DecodeReader(r io.Reader, label string) (io.Reader, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(ErrFormat, "csv: unsupported encoding %q", label)
	}
	return enc.NewDecoder().Reader(r), nil
}

// StreamCSV reads a CSV file and sends every record, header included, to a
// channel. Errors are sent on the error channel. Both channels are closed
// when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		src, err := DecodeReader(r, opts.Encoding)
		if err != nil {
			errCh <- err
			return
		}

		reader := csv.NewReader(src)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
