package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInspectCmd(t *testing.T) {
	dir := setupCmdTest(t)
	writeInput(t, dir, "raw_retail_data.csv", scenarioCSV)

	out, err := execute(t, inspectCmd)
	require.NoError(t, err)

	var report InspectReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "raw_retail_data.csv", report.Input)
	assert.Equal(t, 3, report.Customers)
	assert.Equal(t, 1, report.Clean.Cancelled)
	assert.Equal(t, "2010-01-15 08:00:00", report.FirstInvoice)
	assert.Equal(t, "2011-03-02 09:00:00", report.LastInvoice)
	assert.Equal(t, []CohortSize{
		{Month: "2010-01-01", Customers: 1},
		{Month: "2011-01-01", Customers: 2},
	}, report.Cohorts)
}

func TestInspectCmd_InputFlag(t *testing.T) {
	dir := setupCmdTest(t)
	inspectInput = writeInput(t, dir, "other.csv", "Invoice,InvoiceDate,Customer ID\n")

	out, err := execute(t, inspectCmd)
	require.NoError(t, err)

	var report InspectReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, filepath.Join(dir, "other.csv"), report.Input)
	assert.Zero(t, report.Customers)
	assert.Empty(t, report.Cohorts)
	assert.Empty(t, report.FirstInvoice)
}
