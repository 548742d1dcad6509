package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cohort-cli/internal/fetcher"
	"github.com/sells-group/cohort-cli/internal/model"
)

// Input formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatZIP  = "zip"
)

// Source yields the raw transactions of one input location.
type Source interface {
	// Load reads every transaction. It is called once.
	Load(ctx context.Context) ([]model.RawTransaction, error)

	// Close releases downloaded files and connections.
	Close() error
}

// Options configures Open.
type Options struct {
	Format    string // csv, xlsx or zip; empty = by file extension
	Encoding  string // CSV charset label
	Delimiter rune   // CSV delimiter; 0 = ','
	Sheet     string // XLSX sheet; empty = all sheets
	Table     string // Postgres table, optionally schema-qualified
	Decode    DecodeOptions

	// TempDir is the parent of the per-run scratch directory used for
	// downloads and archive extraction. Empty uses the system default.
	TempDir string

	// Downloaders fetch remote inputs, keyed by URL scheme.
	Downloaders map[string]fetcher.Downloader

	// Connect opens Postgres sources. Nil uses a pgx connection pool.
	Connect ConnectFunc
}

// Open resolves location to a Source. Remote files are downloaded and zip
// archives extracted into a scratch directory that Close removes.
func Open(ctx context.Context, location string, opts Options) (Source, error) {
	switch fetcher.Scheme(location) {
	case "postgres", "postgresql":
		return openPostgres(ctx, location, opts)
	}

	ws := &workspace{parent: opts.TempDir}
	src, err := openFile(ctx, location, opts, ws)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	return src, nil
}

func openFile(ctx context.Context, location string, opts Options, ws *workspace) (Source, error) {
	path := location
	if fetcher.IsRemote(location) {
		p, err := download(ctx, location, opts, ws)
		if err != nil {
			return nil, err
		}
		path = p
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, accessWrapf(err, "ingest: open %s", path)
	}
	if info.IsDir() {
		return nil, accessErrorf("ingest: %s is a directory", path)
	}

	format := strings.ToLower(opts.Format)
	if format == "" {
		if format, err = formatOf(path); err != nil {
			return nil, err
		}
	}

	if format == FormatZIP {
		dir, err := ws.Dir()
		if err != nil {
			return nil, err
		}
		extracted, err := fetcher.ExtractZIPSingle(path, filepath.Join(dir, "extract"))
		if err != nil {
			return nil, schemaWrapf(err, "ingest: %s", path)
		}
		zap.L().Debug("ingest: extracted archive", zap.String("archive", path), zap.String("file", extracted))
		path = extracted
		if format, err = formatOf(path); err != nil {
			return nil, err
		}
		if format == FormatZIP {
			return nil, schemaErrorf("ingest: nested archive %s is not supported", path)
		}
	}

	switch format {
	case FormatCSV, FormatXLSX:
		return &fileSource{path: path, format: format, opts: opts, ws: ws}, nil
	default:
		return nil, schemaErrorf("ingest: unsupported input format %q", format)
	}
}

func download(ctx context.Context, location string, opts Options, ws *workspace) (string, error) {
	scheme := fetcher.Scheme(location)
	d, ok := opts.Downloaders[scheme]
	if !ok || d == nil {
		return "", accessErrorf("ingest: no downloader configured for %s://", scheme)
	}

	dir, err := ws.Dir()
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, fetcher.RemoteFileName(location))

	n, err := d.DownloadToFile(ctx, location, dest)
	if err != nil {
		return "", accessWrapf(err, "ingest: download %s", location)
	}
	zap.L().Info("ingest: downloaded input", zap.String("url", location), zap.Int64("bytes", n))
	return dest, nil
}

// formatOf picks the input format from a file extension.
func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".zip":
		return FormatZIP, nil
	case ".xls":
		return "", schemaErrorf("ingest: legacy .xls workbooks are not supported, save %s as .xlsx or .csv", path)
	default:
		return FormatCSV, nil
	}
}

// fileSource reads a local CSV or XLSX file.
type fileSource struct {
	path   string
	format string
	opts   Options
	ws     *workspace
}

func (s *fileSource) Load(ctx context.Context) ([]model.RawTransaction, error) {
	if s.format == FormatXLSX {
		return LoadRows(ctx, func(ctx context.Context) (<-chan []string, <-chan error) {
			return fetcher.StreamXLSX(ctx, s.path, fetcher.XLSXOptions{SheetName: s.opts.Sheet})
		}, s.opts.Decode)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, accessWrapf(err, "ingest: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck

	return LoadRows(ctx, func(ctx context.Context) (<-chan []string, <-chan error) {
		return fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
			Delimiter:  s.opts.Delimiter,
			Encoding:   s.opts.Encoding,
			LazyQuotes: true,
		})
	}, s.opts.Decode)
}

func (s *fileSource) Close() error {
	return s.ws.Close()
}

// workspace is a lazily created scratch directory.
type workspace struct {
	parent string
	dir    string
}

func (w *workspace) Dir() (string, error) {
	if w.dir != "" {
		return w.dir, nil
	}
	dir, err := os.MkdirTemp(w.parent, "cohort-input-*")
	if err != nil {
		return "", eris.Wrap(err, "ingest: create scratch dir")
	}
	w.dir = dir
	return dir, nil
}

func (w *workspace) Close() error {
	if w.dir == "" {
		return nil
	}
	err := os.RemoveAll(w.dir)
	w.dir = ""
	return eris.Wrap(err, "ingest: remove scratch dir")
}
