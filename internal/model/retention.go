package model

import (
	"strconv"
	"time"
)

// DateLayout is the rendering of cohort months in every output format.
const DateLayout = "2006-01-02"

// RetentionColumns is the ordered output header.
var RetentionColumns = []string{
	"cohort_month",
	"start_count",
	"month_number",
	"active_users",
	"retention_rate",
}

// Rate is a percentage held in exact tenths (1000 = 100.0%).
type Rate int

// Float returns the rate as a percentage.
func (r Rate) Float() float64 {
	return float64(r) / 10
}

// String renders the rate with exactly one fractional digit.
func (r Rate) String() string {
	n := int(r)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return sign + strconv.Itoa(n/10) + "." + strconv.Itoa(n%10)
}

// RetentionRow is one (cohort month, month offset) cell of the retention table.
type RetentionRow struct {
	CohortMonth   time.Time `json:"cohort_month" yaml:"cohort_month"`
	StartCount    int       `json:"start_count" yaml:"start_count"`
	MonthNumber   int       `json:"month_number" yaml:"month_number"`
	ActiveUsers   int       `json:"active_users" yaml:"active_users"`
	RetentionRate Rate      `json:"retention_rate" yaml:"retention_rate"`
}

// Record renders the row in RetentionColumns order.
func (r RetentionRow) Record() []string {
	return []string{
		r.CohortMonth.Format(DateLayout),
		strconv.Itoa(r.StartCount),
		strconv.Itoa(r.MonthNumber),
		strconv.Itoa(r.ActiveUsers),
		r.RetentionRate.String(),
	}
}
