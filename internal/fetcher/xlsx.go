package fetcher

import (
	"context"
	"errors"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXTimeLayout is how date-formatted numeric cells are rendered.
const XLSXTimeLayout = "2006-01-02 15:04:05"

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	// SheetName selects a single sheet. When empty every sheet is read in
	// workbook order; all sheets must share the first sheet's header, and the
	// header row of each later sheet is skipped.
	SheetName string
}

// StreamXLSX reads an XLSX file and sends rows to a channel, header first.
// Both channels are closed when processing completes.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) {
				errCh <- eris.Wrap(err, "xlsx: open file")
			} else {
				errCh <- eris.Wrapf(ErrFormat, "xlsx: open file: %v", err)
			}
			return
		}

		sheets, err := selectSheets(f, opts)
		if err != nil {
			errCh <- err
			return
		}

		var header []string
		for si, sheet := range sheets {
			for i, row := range sheet.Rows {
				if ctx.Err() != nil {
					errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
					return
				}

				cells := rowToStrings(row, f.Date1904)

				if i == 0 {
					if si == 0 {
						header = cells
					} else {
						if !slices.Equal(trimRight(cells), trimRight(header)) {
							errCh <- eris.Wrapf(ErrFormat, "xlsx: sheet %q header %v does not match %v", sheet.Name, cells, header)
							return
						}
						continue
					}
				}

				select {
				case rowCh <- cells:
				case <-ctx.Done():
					errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
					return
				}
			}
		}
	}()

	return rowCh, errCh
}

func selectSheets(f *xlsx.File, opts XLSXOptions) ([]*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Wrapf(ErrFormat, "xlsx: sheet %q not found", opts.SheetName)
		}
		return []*xlsx.Sheet{sheet}, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Wrap(ErrFormat, "xlsx: workbook has no sheets")
	}
	return f.Sheets, nil
}

// trimRight drops trailing empty cells, which xlsx rows may carry or omit.
func trimRight(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}

func rowToStrings(row *xlsx.Row, date1904 bool) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cellString(cell, date1904)
	}
	return cells
}

// cellString renders date-formatted numeric cells as timestamps instead of
// their serial number or locale-specific display format.
func cellString(cell *xlsx.Cell, date1904 bool) string {
	if cell.Type() == xlsx.CellTypeDate ||
		(cell.Type() == xlsx.CellTypeNumeric && isDateFormat(cell.GetNumberFormat())) {
		if t, err := cell.GetTime(date1904); err == nil {
			return t.Round(time.Second).Format(XLSXTimeLayout)
		}
	}
	return cell.String()
}

// isDateFormat reports whether an Excel number format displays a date or time.
func isDateFormat(format string) bool {
	format = strings.ToLower(format)
	if format == "" || format == "general" || format == "@" {
		return false
	}
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range format {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()
	return strings.ContainsAny(s, "yd") || (strings.Contains(s, "h") && strings.Contains(s, ":"))
}
