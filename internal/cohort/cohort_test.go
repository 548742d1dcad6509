package cohort

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cohort-cli/internal/model"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func tx(customer, invoice string, y int, m time.Month, d int) model.Transaction {
	return model.Transaction{
		CustomerID:  customer,
		InvoiceID:   invoice,
		InvoiceDate: time.Date(y, m, d, 10, 30, 0, 0, time.UTC),
	}
}

func TestCompute_ScenarioA(t *testing.T) {
	txns := []model.Transaction{
		tx("12346", "536365", 2011, time.January, 4),
		tx("12347", "536366", 2011, time.January, 18),
		tx("12346", "540001", 2011, time.March, 2),
	}

	rows := Compute(txns, DefaultOptions())
	require.Len(t, rows, 2)

	assert.Equal(t, model.RetentionRow{
		CohortMonth: month(2011, time.January), StartCount: 2, MonthNumber: 0, ActiveUsers: 2, RetentionRate: 1000,
	}, rows[0])
	assert.Equal(t, model.RetentionRow{
		CohortMonth: month(2011, time.January), StartCount: 2, MonthNumber: 2, ActiveUsers: 1, RetentionRate: 500,
	}, rows[1])
	assert.Equal(t, "100.0", rows[0].RetentionRate.String())
	assert.Equal(t, "50.0", rows[1].RetentionRate.String())
}

func TestCompute_ScenarioD_OffsetBeyondWindowDropped(t *testing.T) {
	txns := []model.Transaction{
		tx("1", "500000", 2010, time.January, 10),
		tx("1", "500001", 2011, time.February, 10), // offset 13
	}

	cohorts := AssignCohorts(txns)
	acts := Activities(txns, cohorts)
	require.Len(t, acts, 2)
	assert.Equal(t, 13, acts[1].MonthNumber)

	rows := Compute(txns, DefaultOptions())
	require.Len(t, rows, 1)
	assert.Equal(t, 0, rows[0].MonthNumber)
}

func TestCompute_OffsetTwelveKept(t *testing.T) {
	txns := []model.Transaction{
		tx("1", "500000", 2010, time.January, 31),
		tx("1", "500001", 2011, time.January, 1),
	}
	rows := Compute(txns, DefaultOptions())
	require.Len(t, rows, 2)
	assert.Equal(t, 12, rows[1].MonthNumber)
}

func TestCompute_CustomWindow(t *testing.T) {
	txns := []model.Transaction{
		tx("1", "1", 2010, time.January, 1),
		tx("1", "2", 2010, time.February, 1),
		tx("1", "3", 2010, time.April, 1),
	}
	rows := Compute(txns, Options{MaxMonth: 1})
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[1].MonthNumber)
}

func TestCompute_Empty(t *testing.T) {
	rows := Compute(nil, DefaultOptions())
	assert.Empty(t, rows)
	assert.NotNil(t, rows)
}

func TestAssignCohorts_SingleTransaction(t *testing.T) {
	cohorts := AssignCohorts([]model.Transaction{tx("9", "1", 2011, time.June, 15)})
	assert.Equal(t, map[string]time.Time{"9": month(2011, time.June)}, cohorts)
}

func TestAssignCohorts_OrderInsensitive(t *testing.T) {
	txns := []model.Transaction{
		tx("a", "1", 2011, time.May, 3),
		tx("a", "2", 2010, time.December, 20),
		tx("b", "3", 2011, time.February, 1),
		tx("a", "4", 2011, time.January, 1),
	}
	want := AssignCohorts(txns)

	reversed := make([]model.Transaction, len(txns))
	for i := range txns {
		reversed[len(txns)-1-i] = txns[i]
	}
	assert.Equal(t, want, AssignCohorts(reversed))
	assert.Equal(t, month(2010, time.December), want["a"])
}

func TestCohortSizes_SumEqualsCustomers(t *testing.T) {
	cohorts := map[string]time.Time{
		"a": month(2011, time.January),
		"b": month(2011, time.January),
		"c": month(2011, time.March),
	}
	sizes := CohortSizes(cohorts)
	assert.Equal(t, 2, sizes[month(2011, time.January)])
	assert.Equal(t, 1, sizes[month(2011, time.March)])

	total := 0
	for _, n := range sizes {
		total += n
	}
	assert.Equal(t, len(cohorts), total)
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		name     string
		from, to time.Time
		want     int
	}{
		{"same month", month(2011, time.January), time.Date(2011, time.January, 31, 23, 0, 0, 0, time.UTC), 0},
		{"two months", month(2011, time.January), month(2011, time.March), 2},
		{"across year", month(2010, time.December), month(2011, time.January), 1},
		{"thirteen", month(2010, time.January), month(2011, time.February), 13},
		{"day ignored", time.Date(2011, time.January, 31, 0, 0, 0, 0, time.UTC), time.Date(2011, time.February, 1, 0, 0, 0, 0, time.UTC), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthsBetween(tt.from, tt.to))
		})
	}
}

func TestActivities_Deduplicates(t *testing.T) {
	txns := []model.Transaction{
		tx("a", "1", 2011, time.January, 2),
		tx("a", "1", 2011, time.January, 2), // second line item, same invoice
		tx("a", "2", 2011, time.January, 20),
		tx("a", "3", 2011, time.February, 5),
		tx("a", "4", 2011, time.February, 28),
	}
	acts := Activities(txns, AssignCohorts(txns))
	require.Len(t, acts, 2)
	assert.Equal(t, 0, acts[0].MonthNumber)
	assert.Equal(t, 1, acts[1].MonthNumber)
}

func TestRetentionRate(t *testing.T) {
	tests := []struct {
		active, start int
		want          string
	}{
		{2, 2, "100.0"},
		{1, 2, "50.0"},
		{1, 3, "33.3"},
		{2, 3, "66.7"},
		{1, 16, "6.3"},   // 6.25 rounds half away from zero
		{1, 2000, "0.1"}, // 0.05 rounds up
		{1, 2001, "0.0"},
		{7, 9, "77.8"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetentionRate(tt.active, tt.start).String(), "%d/%d", tt.active, tt.start)
	}
}

func TestRetentionRate_PanicsOnZeroStart(t *testing.T) {
	assert.Panics(t, func() { RetentionRate(1, 0) })
}

func TestSummarize_Sorted(t *testing.T) {
	jan, feb := month(2011, time.January), month(2011, time.February)
	acts := []Activity{
		{CustomerID: "b", CohortMonth: feb, MonthNumber: 1},
		{CustomerID: "a", CohortMonth: jan, MonthNumber: 3},
		{CustomerID: "b", CohortMonth: feb, MonthNumber: 0},
		{CustomerID: "a", CohortMonth: jan, MonthNumber: 0},
	}
	rows := Summarize(acts, map[time.Time]int{jan: 1, feb: 1}, DefaultMaxMonth)
	require.Len(t, rows, 4)
	assert.Equal(t, jan, rows[0].CohortMonth)
	assert.Equal(t, 0, rows[0].MonthNumber)
	assert.Equal(t, 3, rows[1].MonthNumber)
	assert.Equal(t, feb, rows[2].CohortMonth)
	assert.Equal(t, 1, rows[3].MonthNumber)
}

// randomTransactions builds a deterministic pseudo-random log spanning two years.
func randomTransactions(seed uint64, customers, lines int) []model.Transaction {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	base := time.Date(2009, time.December, 1, 0, 0, 0, 0, time.UTC)
	txns := make([]model.Transaction, 0, lines)
	for i := range lines {
		cust := r.IntN(customers)
		ts := base.Add(time.Duration(r.IntN(24*30*24)) * time.Hour)
		txns = append(txns, model.Transaction{
			CustomerID:  "c" + string(rune('A'+cust%26)) + string(rune('a'+cust/26)),
			InvoiceID:   "inv" + string(rune('0'+i%10)),
			InvoiceDate: ts,
		})
	}
	return txns
}

func TestCompute_Properties(t *testing.T) {
	txns := randomTransactions(42, 300, 5000)
	rows := Compute(txns, DefaultOptions())
	require.NotEmpty(t, rows)

	starts := make(map[time.Time]int)
	for i, row := range rows {
		assert.GreaterOrEqual(t, row.ActiveUsers, 0)
		assert.LessOrEqual(t, row.ActiveUsers, row.StartCount)
		assert.GreaterOrEqual(t, row.MonthNumber, 0)
		assert.LessOrEqual(t, row.MonthNumber, DefaultMaxMonth)
		assert.GreaterOrEqual(t, row.StartCount, 1)
		assert.Equal(t, RetentionRate(row.ActiveUsers, row.StartCount), row.RetentionRate)

		if row.MonthNumber == 0 {
			assert.Equal(t, row.StartCount, row.ActiveUsers, "founding month must be fully retained")
			assert.Equal(t, model.Rate(1000), row.RetentionRate)
		}
		if prev, ok := starts[row.CohortMonth]; ok {
			assert.Equal(t, prev, row.StartCount, "start_count differs within cohort %s", row.CohortMonth)
		}
		starts[row.CohortMonth] = row.StartCount

		if i > 0 {
			prev := rows[i-1]
			ordered := prev.CohortMonth.Before(row.CohortMonth) ||
				(prev.CohortMonth.Equal(row.CohortMonth) && prev.MonthNumber < row.MonthNumber)
			assert.True(t, ordered, "rows %d and %d out of order", i-1, i)
		}
	}

	// Every cohort has its founding row, and sizes sum to distinct customers.
	customers := make(map[string]struct{})
	for _, tx := range txns {
		customers[tx.CustomerID] = struct{}{}
	}
	total := 0
	for _, n := range starts {
		total += n
	}
	assert.Equal(t, len(customers), total)
}

func TestCompute_Deterministic(t *testing.T) {
	txns := randomTransactions(7, 100, 2000)
	first := Compute(txns, DefaultOptions())

	shuffled := append([]model.Transaction(nil), txns...)
	r := rand.New(rand.NewPCG(1, 2))
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	assert.Equal(t, first, Compute(shuffled, DefaultOptions()))
}
