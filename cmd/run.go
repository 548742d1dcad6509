package main

import (
	"context"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cohort-cli/internal/config"
	"github.com/sells-group/cohort-cli/internal/engine"
	"github.com/sells-group/cohort-cli/internal/export"
	"github.com/sells-group/cohort-cli/internal/ingest"
	"github.com/sells-group/cohort-cli/internal/model"
)

var (
	runInput  string
	runOutput string
	runEngine string
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute the retention table and write it",
	Long: `Loads the transaction log, computes monthly retention per acquisition cohort and
writes cohort_month,start_count,month_number,active_users,retention_rate rows.

Examples:
  cohort-cli run
  cohort-cli run --input online_retail_II.xlsx --output cohorts.xlsx
  cohort-cli run --input https://example.com/raw_retail_data.zip --engine sqlite
  cohort-cli run --input postgres://localhost/retail --output - --dry-run`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := withOverrides(cfg, runInput, runOutput, runEngine)
		if err := c.Validate(); err != nil {
			return err
		}

		runID, restore := startRun("run")
		defer restore()

		summary, err := executeRun(ctx, c, runDryRun, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if runDryRun {
			summary.RunID = runID
			return writeYAML(cmd.OutOrStdout(), summary)
		}
		return nil
	},
}

// RunSummary describes a completed run.
type RunSummary struct {
	RunID   string       `yaml:"run_id"`
	Input   string       `yaml:"input"`
	Output  string       `yaml:"output,omitempty"`
	Engine  string       `yaml:"engine"`
	DryRun  bool         `yaml:"dry_run"`
	Clean   ingest.Stats `yaml:"clean"`
	Cohorts int          `yaml:"cohorts"`
	Rows    int          `yaml:"rows"`
	Preview []string     `yaml:"preview,omitempty"`
}

// previewRows caps the rows echoed by a dry run.
const previewRows = 13

func executeRun(ctx context.Context, c *config.Config, dryRun bool, stdout io.Writer) (*RunSummary, error) {
	start := time.Now()

	raw, err := loadInput(ctx, c)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(c.Cohort.Engine, engineOptions(c))
	if err != nil {
		return nil, err
	}
	rows, err := eng.Compute(ctx, raw)
	if err != nil {
		return nil, eris.Wrapf(err, "run: compute with %s engine", eng.Name())
	}

	_, stats := ingest.Clean(raw, c.Cohort.CancelPrefix)
	summary := &RunSummary{
		Input:   c.Input.Path,
		Engine:  eng.Name(),
		DryRun:  dryRun,
		Clean:   stats,
		Cohorts: countCohorts(rows),
		Rows:    len(rows),
	}

	if dryRun {
		for _, r := range rows[:min(len(rows), previewRows)] {
			summary.Preview = append(summary.Preview, strings.Join(r.Record(), ","))
		}
	} else {
		if err := export.Write(c.Output.Path, rows, export.Options{
			Format: c.Output.Format,
			Sheet:  c.Output.Sheet,
			Stdout: stdout,
		}); err != nil {
			return nil, err
		}
		summary.Output = c.Output.Path
	}

	zap.L().Info("run complete",
		zap.String("engine", eng.Name()),
		zap.Int("rows_read", stats.Read),
		zap.Int("rows_kept", stats.Kept),
		zap.Int("cohorts", summary.Cohorts),
		zap.Int("retention_rows", len(rows)),
		zap.Bool("dry_run", dryRun),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

// withOverrides returns a copy of c with non-empty flag values applied.
func withOverrides(c *config.Config, input, output, engineName string) *config.Config {
	out := *c
	if input != "" {
		out.Input.Path = input
	}
	if output != "" {
		out.Output.Path = output
	}
	if engineName != "" {
		out.Cohort.Engine = engineName
	}
	return &out
}

func countCohorts(rows []model.RetentionRow) int {
	n := 0
	for i, r := range rows {
		if i == 0 || !r.CohortMonth.Equal(rows[i-1].CohortMonth) {
			n++
		}
	}
	return n
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode yaml")
	}
	return eris.Wrap(enc.Close(), "encode yaml")
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "input file, URL or postgres:// DSN (default from input.path)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "output file, or - for stdout (default from output.path)")
	runCmd.Flags().StringVar(&runEngine, "engine", "", "computation engine: native or sqlite (default from cohort.engine)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "compute and print a YAML summary without writing output")
	rootCmd.AddCommand(runCmd)
}
