package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/cohort-cli/internal/model"
)

// sqliteTimeLayout is how invoice timestamps are stored; strftime parses it.
const sqliteTimeLayout = "2006-01-02 15:04:05"

const sqliteSchema = `
CREATE TABLE raw_transactions (
	customer_id  TEXT,
	invoice_id   TEXT NOT NULL,
	invoice_date TEXT NOT NULL
);
`

// retentionQuery mirrors the native pipeline. Parameters: ?1 cancel prefix,
// ?2 max month. The prefix test uses substr because LIKE is
// case-insensitive in SQLite.
const retentionQuery = `
WITH clean_data AS (
	SELECT customer_id, invoice_date
	FROM raw_transactions
	WHERE customer_id IS NOT NULL
	  AND customer_id <> ''
	  AND invoice_id <> ''
	  AND substr(invoice_id, 1, length(?1)) <> ?1
),
cohorts AS (
	SELECT customer_id, MIN(strftime('%Y-%m-01', invoice_date)) AS cohort_month
	FROM clean_data
	GROUP BY customer_id
),
activities AS (
	SELECT DISTINCT
		d.customer_id,
		c.cohort_month,
		(CAST(strftime('%Y', d.invoice_date) AS INTEGER) * 12 + CAST(strftime('%m', d.invoice_date) AS INTEGER))
		- (CAST(strftime('%Y', c.cohort_month) AS INTEGER) * 12 + CAST(strftime('%m', c.cohort_month) AS INTEGER)) AS month_number
	FROM clean_data d
	JOIN cohorts c ON c.customer_id = d.customer_id
),
cohort_sizes AS (
	SELECT cohort_month, COUNT(*) AS start_count
	FROM cohorts
	GROUP BY cohort_month
)
SELECT
	a.cohort_month,
	s.start_count,
	a.month_number,
	COUNT(DISTINCT a.customer_id) AS active_users,
	(2000 * COUNT(DISTINCT a.customer_id) + s.start_count) / (2 * s.start_count) AS retention_tenths
FROM activities a
JOIN cohort_sizes s ON s.cohort_month = a.cohort_month
GROUP BY a.cohort_month, a.month_number, s.start_count
HAVING a.month_number <= ?2
ORDER BY a.cohort_month, a.month_number
`

// SQLiteEngine evaluates the retention query in a private in-memory
// database opened per Compute call.
type SQLiteEngine struct {
	opts Options
}

// NewSQLite creates a SQLiteEngine.
func NewSQLite(opts Options) *SQLiteEngine {
	return &SQLiteEngine{opts: opts}
}

func (e *SQLiteEngine) Name() string { return SQLite }

func (e *SQLiteEngine) Compute(ctx context.Context, raw []model.RawTransaction) ([]model.RetentionRow, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	defer db.Close() //nolint:errcheck
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, eris.Wrap(err, "sqlite: create schema")
	}

	start := time.Now()
	if err := insertRaw(ctx, db, raw); err != nil {
		return nil, err
	}
	zap.L().Debug("engine: loaded transactions into sqlite",
		zap.Int("rows", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return queryRetention(ctx, db, e.opts)
}

func insertRaw(ctx context.Context, db *sql.DB, raw []model.RawTransaction) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_transactions (customer_id, invoice_id, invoice_date) VALUES (?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, r := range raw {
		var customer sql.NullString
		if r.CustomerID != nil {
			customer = sql.NullString{String: *r.CustomerID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, customer, r.InvoiceID, r.InvoiceDate.Format(sqliteTimeLayout)); err != nil {
			return eris.Wrapf(err, "sqlite: insert row %d", i+1)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func queryRetention(ctx context.Context, db *sql.DB, opts Options) ([]model.RetentionRow, error) {
	rows, err := db.QueryContext(ctx, retentionQuery, opts.CancelPrefix, opts.MaxMonth)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query retention")
	}
	defer rows.Close() //nolint:errcheck

	out := make([]model.RetentionRow, 0)
	for rows.Next() {
		var (
			month string
			r     model.RetentionRow
			rate  int
		)
		if err := rows.Scan(&month, &r.StartCount, &r.MonthNumber, &r.ActiveUsers, &rate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan retention row")
		}
		r.CohortMonth, err = time.Parse(model.DateLayout, month)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse cohort month %q", month)
		}
		r.RetentionRate = model.Rate(rate)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate retention rows")
}
