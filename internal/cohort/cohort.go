// Package cohort computes monthly retention cohorts from cleaned transactions.
//
// The computation runs in three stages: AssignCohorts labels every customer
// with the month of their first purchase, Activities turns transactions into
// distinct (customer, month offset) facts, and Summarize counts active
// customers per (cohort month, offset) cell.
package cohort

import (
	"sort"
	"time"

	"github.com/sells-group/cohort-cli/internal/model"
)

// DefaultMaxMonth is the last month offset kept in the output (one year).
const DefaultMaxMonth = 12

// Options tunes Compute.
type Options struct {
	MaxMonth int // offsets above this are dropped; 0 keeps only the founding month
}

// DefaultOptions returns the one-year window.
func DefaultOptions() Options {
	return Options{MaxMonth: DefaultMaxMonth}
}

// Activity records that a customer transacted MonthNumber months after
// joining their cohort.
type Activity struct {
	CustomerID  string
	CohortMonth time.Time
	MonthNumber int
}

// Compute runs the full cohort computation over cleaned transactions.
func Compute(txns []model.Transaction, opts Options) []model.RetentionRow {
	cohorts := AssignCohorts(txns)
	sizes := CohortSizes(cohorts)
	acts := Activities(txns, cohorts)
	return Summarize(acts, sizes, opts.MaxMonth)
}

// AssignCohorts maps each customer to the earliest invoice month among
// their transactions.
func AssignCohorts(txns []model.Transaction) map[string]time.Time {
	cohorts := make(map[string]time.Time)
	for _, tx := range txns {
		month := tx.InvoiceMonth()
		if cur, ok := cohorts[tx.CustomerID]; !ok || month.Before(cur) {
			cohorts[tx.CustomerID] = month
		}
	}
	return cohorts
}

// CohortSizes counts distinct customers per cohort month.
func CohortSizes(cohorts map[string]time.Time) map[time.Time]int {
	sizes := make(map[time.Time]int)
	for _, month := range cohorts {
		sizes[month]++
	}
	return sizes
}

// MonthsBetween returns the number of calendar month boundaries between the
// months of from and to. Days within the month are ignored.
func MonthsBetween(from, to time.Time) int {
	return (to.Year()*12 + int(to.Month())) - (from.Year()*12 + int(from.Month()))
}

type activityKey struct {
	customer string
	month    int
}

// Activities returns one fact per distinct (customer, month offset) pair, in
// first-seen order. Every transaction's customer must be present in cohorts.
func Activities(txns []model.Transaction, cohorts map[string]time.Time) []Activity {
	seen := make(map[activityKey]struct{}, len(txns))
	var acts []Activity
	for _, tx := range txns {
		cohortMonth := cohorts[tx.CustomerID]
		n := MonthsBetween(cohortMonth, tx.InvoiceMonth())
		key := activityKey{customer: tx.CustomerID, month: n}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		acts = append(acts, Activity{
			CustomerID:  tx.CustomerID,
			CohortMonth: cohortMonth,
			MonthNumber: n,
		})
	}
	return acts
}

type cellKey struct {
	cohort time.Time
	month  int
}

// Summarize groups activities into retention rows. Offsets above maxMonth
// are dropped. Rows are sorted by cohort month, then month number.
func Summarize(acts []Activity, sizes map[time.Time]int, maxMonth int) []model.RetentionRow {
	active := make(map[cellKey]map[string]struct{})
	for _, a := range acts {
		if a.MonthNumber > maxMonth {
			continue
		}
		key := cellKey{cohort: a.CohortMonth, month: a.MonthNumber}
		set, ok := active[key]
		if !ok {
			set = make(map[string]struct{})
			active[key] = set
		}
		set[a.CustomerID] = struct{}{}
	}

	rows := make([]model.RetentionRow, 0, len(active))
	for key, customers := range active {
		start := sizes[key.cohort]
		rows = append(rows, model.RetentionRow{
			CohortMonth:   key.cohort,
			StartCount:    start,
			MonthNumber:   key.month,
			ActiveUsers:   len(customers),
			RetentionRate: RetentionRate(len(customers), start),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CohortMonth.Equal(rows[j].CohortMonth) {
			return rows[i].CohortMonth.Before(rows[j].CohortMonth)
		}
		return rows[i].MonthNumber < rows[j].MonthNumber
	})
	return rows
}

// RetentionRate returns active*100/start rounded to one decimal place, half
// away from zero. The arithmetic is exact: no float ties are misrounded.
// start must be positive.
func RetentionRate(active, start int) model.Rate {
	if start <= 0 {
		panic("cohort: retention rate with non-positive start count")
	}
	return model.Rate((2000*active + start) / (2 * start))
}
