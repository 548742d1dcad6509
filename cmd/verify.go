package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cohort-cli/internal/config"
	"github.com/sells-group/cohort-cli/internal/engine"
	"github.com/sells-group/cohort-cli/internal/model"
)

var verifyInput string

// maxReportedDiffs caps the differences listed by verify.
const maxReportedDiffs = 5

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run every engine on the same input and compare their rows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := withOverrides(cfg, verifyInput, "", "")
		if err := c.Validate(); err != nil {
			return err
		}

		runID, restore := startRun("verify")
		defer restore()

		report, err := verifyEngines(ctx, c)
		if err != nil {
			return err
		}
		report.RunID = runID
		if err := writeYAML(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if !report.Agree {
			return eris.Errorf("verify: engines disagree (%d differing rows)", report.Mismatches)
		}
		return nil
	},
}

// VerifyReport compares the output of every engine against the native one.
type VerifyReport struct {
	RunID       string         `yaml:"run_id"`
	Input       string         `yaml:"input"`
	Rows        map[string]int `yaml:"rows"`
	Agree       bool           `yaml:"agree"`
	Mismatches  int            `yaml:"mismatches"`
	Differences []string       `yaml:"differences,omitempty"`
}

func verifyEngines(ctx context.Context, c *config.Config) (*VerifyReport, error) {
	raw, err := loadInput(ctx, c)
	if err != nil {
		return nil, err
	}

	results := make(map[string][]model.RetentionRow)
	report := &VerifyReport{Input: c.Input.Path, Rows: make(map[string]int)}
	for _, name := range engine.Names() {
		eng, err := engine.New(name, engineOptions(c))
		if err != nil {
			return nil, err
		}
		rows, err := eng.Compute(ctx, raw)
		if err != nil {
			return nil, eris.Wrapf(err, "verify: compute with %s engine", name)
		}
		results[name] = rows
		report.Rows[name] = len(rows)
	}

	base := results[engine.Native]
	for _, name := range engine.Names() {
		if name == engine.Native {
			continue
		}
		n, diffs := diffRows(engine.Native, base, name, results[name])
		report.Mismatches += n
		report.Differences = append(report.Differences, diffs...)
	}
	report.Agree = report.Mismatches == 0

	zap.L().Info("verify complete",
		zap.Bool("agree", report.Agree),
		zap.Int("mismatches", report.Mismatches),
	)
	return report, nil
}

// diffRows counts positions where a and b differ and describes the first
// few of them.
func diffRows(nameA string, a []model.RetentionRow, nameB string, b []model.RetentionRow) (int, []string) {
	var (
		count int
		diffs []string
	)
	for i := range max(len(a), len(b)) {
		ra, rb := recordAt(a, i), recordAt(b, i)
		if ra == rb {
			continue
		}
		count++
		if len(diffs) < maxReportedDiffs {
			diffs = append(diffs, fmt.Sprintf("row %d: %s=%s %s=%s", i+1, nameA, ra, nameB, rb))
		}
	}
	return count, diffs
}

func recordAt(rows []model.RetentionRow, i int) string {
	if i >= len(rows) {
		return "<missing>"
	}
	return strings.Join(rows[i].Record(), ",")
}

func init() {
	verifyCmd.Flags().StringVar(&verifyInput, "input", "", "input file, URL or postgres:// DSN (default from input.path)")
	rootCmd.AddCommand(verifyCmd)
}
