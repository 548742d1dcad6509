package main

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cohort-cli/internal/config"
	"github.com/sells-group/cohort-cli/internal/engine"
	"github.com/sells-group/cohort-cli/internal/fetcher"
	"github.com/sells-group/cohort-cli/internal/ingest"
	"github.com/sells-group/cohort-cli/internal/model"
)

// startRun tags every log line of the run with a fresh id. The returned
// func restores the previous global logger.
func startRun(command string) (string, func()) {
	id := uuid.New().String()
	restore := zap.ReplaceGlobals(zap.L().With(
		zap.String("run_id", id),
		zap.String("command", command),
	))
	return id, restore
}

// ingestOptions maps configuration onto loader options.
func ingestOptions(c *config.Config) ingest.Options {
	var delim rune
	if c.Input.Delimiter != "" {
		delim, _ = utf8.DecodeRuneInString(c.Input.Delimiter)
	}

	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.Fetch.UserAgent,
		Timeout:    timeout,
		MaxRetries: c.Fetch.MaxRetries,
		RatePerSec: c.Fetch.RatePerSec,
	})

	return ingest.Options{
		Format:    c.Input.Format,
		Encoding:  c.Input.Encoding,
		Delimiter: delim,
		Sheet:     c.Input.Sheet,
		Table:     c.Input.Table,
		Decode: ingest.DecodeOptions{
			Columns: ingest.Columns{
				CustomerID:  c.Input.Columns.CustomerID,
				Invoice:     c.Input.Columns.Invoice,
				InvoiceDate: c.Input.Columns.InvoiceDate,
			},
			NullValues:  c.Input.NullValues,
			DateLayouts: c.Input.DateLayouts,
		},
		TempDir: c.Fetch.TempDir,
		Downloaders: map[string]fetcher.Downloader{
			"http":  httpFetcher,
			"https": httpFetcher,
			"ftp":   fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
		},
	}
}

func engineOptions(c *config.Config) engine.Options {
	return engine.Options{
		CancelPrefix: c.Cohort.CancelPrefix,
		MaxMonth:     c.Cohort.MaxMonth,
	}
}

// loadInput opens the configured input and reads every raw transaction.
func loadInput(ctx context.Context, c *config.Config) ([]model.RawTransaction, error) {
	start := time.Now()
	src, err := ingest.Open(ctx, c.Input.Path, ingestOptions(c))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			zap.L().Warn("close input", zap.Error(cerr))
		}
	}()

	raw, err := src.Load(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "load %s", c.Input.Path)
	}
	zap.L().Info("loaded input",
		zap.String("input", c.Input.Path),
		zap.Int("rows", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return raw, nil
}
