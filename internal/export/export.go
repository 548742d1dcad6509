// Package export writes retention tables for BI tools.
package export

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/cohort-cli/internal/model"
)

// ErrWrite marks an output destination that could not be written.
var ErrWrite = eris.New("output write error")

// Output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Stdout is the output path that streams CSV to standard output.
const Stdout = "-"

// DefaultSheet names the worksheet of XLSX output.
const DefaultSheet = "cohorts"

// Options configures Write.
type Options struct {
	Format string // csv or xlsx; empty = by file extension
	Sheet  string // XLSX worksheet name

	// Stdout receives output when the path is "-". Nil uses os.Stdout.
	Stdout io.Writer
}

// FormatOf resolves the output format for path. An explicit format wins.
func FormatOf(path, format string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Write renders rows to path. Files are replaced atomically: the table is
// written to a temp file beside path and renamed over it, so a failed write
// leaves any existing file untouched. Path "-" writes CSV to Options.Stdout.
func Write(path string, rows []model.RetentionRow, opts Options) error {
	if path == Stdout {
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		if err := WriteCSV(out, rows); err != nil {
			return eris.Wrapf(ErrWrite, "export: write stdout: %v", err)
		}
		return nil
	}

	format := FormatOf(path, opts.Format)
	var render func(io.Writer) error
	switch format {
	case FormatCSV:
		render = func(w io.Writer) error { return WriteCSV(w, rows) }
	case FormatXLSX:
		render = func(w io.Writer) error { return WriteXLSX(w, rows, opts.Sheet) }
	default:
		return eris.Errorf("export: unsupported output format %q", format)
	}

	if err := writeAtomic(path, render); err != nil {
		return err
	}
	zap.L().Info("export: wrote retention table",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("rows", len(rows)),
	)
	return nil
}

// WriteCSV writes the header and one record per row.
func WriteCSV(w io.Writer, rows []model.RetentionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.RetentionColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes a single-sheet workbook. Counts are numeric cells and
// the rate is a numeric cell formatted to one decimal.
func WriteXLSX(w io.Writer, rows []model.RetentionRow, sheetName string) error {
	if sheetName == "" {
		sheetName = DefaultSheet
	}
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %q", sheetName)
	}

	header := sheet.AddRow()
	for _, col := range model.RetentionColumns {
		header.AddCell().SetString(col)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.CohortMonth.Format(model.DateLayout))
		row.AddCell().SetInt(r.StartCount)
		row.AddCell().SetInt(r.MonthNumber)
		row.AddCell().SetInt(r.ActiveUsers)
		row.AddCell().SetFloatWithFormat(r.RetentionRate.Float(), "0.0")
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func writeAtomic(path string, render func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(ErrWrite, "export: create temp file in %s: %v", dir, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = render(bw); err != nil {
		return eris.Wrapf(ErrWrite, "export: render %s: %v", path, err)
	}
	if err = bw.Flush(); err != nil {
		return eris.Wrapf(ErrWrite, "export: write %s: %v", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return eris.Wrapf(ErrWrite, "export: sync %s: %v", path, err)
	}
	if err = tmp.Close(); err != nil {
		return eris.Wrapf(ErrWrite, "export: close %s: %v", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return eris.Wrapf(ErrWrite, "export: chmod %s: %v", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(ErrWrite, "export: replace %s: %v", path, err)
	}
	return nil
}
