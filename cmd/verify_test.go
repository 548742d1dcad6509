package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cohort-cli/internal/ingest"
	"github.com/sells-group/cohort-cli/internal/model"
)

func TestVerifyCmd_EnginesAgree(t *testing.T) {
	dir := setupCmdTest(t)
	writeInput(t, dir, "raw_retail_data.csv", scenarioCSV)

	out, err := execute(t, verifyCmd)
	require.NoError(t, err)

	var report VerifyReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.True(t, report.Agree)
	assert.Zero(t, report.Mismatches)
	assert.Equal(t, map[string]int{"native": 3, "sqlite": 3}, report.Rows)
}

func TestVerifyCmd_MissingInput(t *testing.T) {
	setupCmdTest(t)

	_, err := execute(t, verifyCmd)
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrAccess)
}

func TestDiffRows(t *testing.T) {
	jan := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)
	a := []model.RetentionRow{
		{CohortMonth: jan, StartCount: 2, MonthNumber: 0, ActiveUsers: 2, RetentionRate: 1000},
		{CohortMonth: jan, StartCount: 2, MonthNumber: 2, ActiveUsers: 1, RetentionRate: 500},
	}
	b := []model.RetentionRow{
		{CohortMonth: jan, StartCount: 2, MonthNumber: 0, ActiveUsers: 2, RetentionRate: 1000},
	}

	n, diffs := diffRows("native", a, "sqlite", a)
	assert.Zero(t, n)
	assert.Empty(t, diffs)

	n, diffs = diffRows("native", a, "sqlite", b)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"row 2: native=2011-01-01,2,2,1,50.0 sqlite=<missing>"}, diffs)
}

func TestDiffRows_CapsReport(t *testing.T) {
	jan := time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)
	var a []model.RetentionRow
	for i := range 20 {
		a = append(a, model.RetentionRow{CohortMonth: jan, StartCount: 20, MonthNumber: i, ActiveUsers: 1, RetentionRate: 50})
	}

	n, diffs := diffRows("native", a, "sqlite", nil)
	assert.Equal(t, 20, n)
	assert.Len(t, diffs, maxReportedDiffs)
}
