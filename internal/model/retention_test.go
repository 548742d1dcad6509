package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRate_String(t *testing.T) {
	tests := []struct {
		rate Rate
		want string
	}{
		{1000, "100.0"},
		{500, "50.0"},
		{333, "33.3"},
		{5, "0.5"},
		{0, "0.0"},
		{-15, "-1.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rate.String())
	}
}

func TestRate_Float(t *testing.T) {
	assert.InDelta(t, 33.3, Rate(333).Float(), 1e-9)
}

func TestRetentionRow_Record(t *testing.T) {
	row := RetentionRow{
		CohortMonth:   time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC),
		StartCount:    2,
		MonthNumber:   2,
		ActiveUsers:   1,
		RetentionRate: 500,
	}
	assert.Equal(t, []string{"2011-01-01", "2", "2", "1", "50.0"}, row.Record())
	assert.Len(t, RetentionColumns, len(row.Record()))
}

func TestMonthStart(t *testing.T) {
	ts := time.Date(2010, time.December, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2010, time.December, 1, 0, 0, 0, 0, time.UTC), MonthStart(ts))

	// Wall-clock month is kept even for non-UTC locations.
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2011, time.March, 1, 2, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2011, time.March, 1, 0, 0, 0, 0, time.UTC), MonthStart(local))
}

func TestTransaction_InvoiceMonth(t *testing.T) {
	tx := Transaction{CustomerID: "1", InvoiceID: "536365", InvoiceDate: time.Date(2010, time.December, 1, 8, 26, 0, 0, time.UTC)}
	assert.Equal(t, time.Date(2010, time.December, 1, 0, 0, 0, 0, time.UTC), tx.InvoiceMonth())
}
