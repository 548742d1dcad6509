package main

import (
	"context"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/cohort-cli/internal/cohort"
	"github.com/sells-group/cohort-cli/internal/config"
	"github.com/sells-group/cohort-cli/internal/ingest"
	"github.com/sells-group/cohort-cli/internal/model"
)

var inspectInput string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print cleaning statistics and cohort sizes for an input",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := withOverrides(cfg, inspectInput, "", "")
		if err := c.Validate(); err != nil {
			return err
		}

		runID, restore := startRun("inspect")
		defer restore()

		report, err := buildInspectReport(ctx, c)
		if err != nil {
			return err
		}
		report.RunID = runID
		return writeYAML(cmd.OutOrStdout(), report)
	},
}

// InspectReport summarizes an input without computing retention.
type InspectReport struct {
	RunID        string       `yaml:"run_id"`
	Input        string       `yaml:"input"`
	Clean        ingest.Stats `yaml:"clean"`
	Customers    int          `yaml:"customers"`
	FirstInvoice string       `yaml:"first_invoice,omitempty"`
	LastInvoice  string       `yaml:"last_invoice,omitempty"`
	Cohorts      []CohortSize `yaml:"cohorts"`
}

// CohortSize is the number of customers acquired in a month.
type CohortSize struct {
	Month     string `yaml:"month"`
	Customers int    `yaml:"customers"`
}

func buildInspectReport(ctx context.Context, c *config.Config) (*InspectReport, error) {
	raw, err := loadInput(ctx, c)
	if err != nil {
		return nil, err
	}
	txns, stats := ingest.Clean(raw, c.Cohort.CancelPrefix)
	cohorts := cohort.AssignCohorts(txns)

	report := &InspectReport{
		Input:     c.Input.Path,
		Clean:     stats,
		Customers: len(cohorts),
		Cohorts:   []CohortSize{},
	}

	for month, n := range cohort.CohortSizes(cohorts) {
		report.Cohorts = append(report.Cohorts, CohortSize{Month: month.Format(model.DateLayout), Customers: n})
	}
	sort.Slice(report.Cohorts, func(i, j int) bool {
		return report.Cohorts[i].Month < report.Cohorts[j].Month
	})

	if len(txns) > 0 {
		first, last := txns[0].InvoiceDate, txns[0].InvoiceDate
		for _, tx := range txns[1:] {
			if tx.InvoiceDate.Before(first) {
				first = tx.InvoiceDate
			}
			if tx.InvoiceDate.After(last) {
				last = tx.InvoiceDate
			}
		}
		report.FirstInvoice = first.Format(time.DateTime)
		report.LastInvoice = last.Format(time.DateTime)
	}
	return report, nil
}

func init() {
	inspectCmd.Flags().StringVar(&inspectInput, "input", "", "input file, URL or postgres:// DSN (default from input.path)")
	rootCmd.AddCommand(inspectCmd)
}
