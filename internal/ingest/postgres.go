package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cohort-cli/internal/model"
)

// PostgresPool is the subset of *pgxpool.Pool the Postgres source uses.
type PostgresPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// ConnectFunc opens a Postgres pool for a DSN.
type ConnectFunc func(ctx context.Context, dsn string) (PostgresPool, error)

// ConnectPgx opens a pgx pool and verifies the connection.
func ConnectPgx(ctx context.Context, dsn string) (PostgresPool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return pool, nil
}

const (
	sqlStateUndefinedColumn = "42703"
	sqlStateUndefinedTable  = "42P01"
)

func openPostgres(ctx context.Context, dsn string, opts Options) (Source, error) {
	connect := opts.Connect
	if connect == nil {
		connect = ConnectPgx
	}
	pool, err := connect(ctx, dsn)
	if err != nil {
		return nil, accessWrapf(err, "ingest: open postgres source")
	}
	return NewPostgresSource(pool, opts), nil
}

// PostgresSource reads transactions from a table.
type PostgresSource struct {
	pool  PostgresPool
	table string
	opts  DecodeOptions
	nulls map[string]struct{}
}

// NewPostgresSource wraps an open pool. The source owns the pool.
func NewPostgresSource(pool PostgresPool, opts Options) *PostgresSource {
	table := opts.Table
	if table == "" {
		table = "transactions"
	}
	nulls := make(map[string]struct{}, len(opts.Decode.NullValues))
	for _, v := range opts.Decode.NullValues {
		nulls[strings.TrimSpace(v)] = struct{}{}
	}
	return &PostgresSource{pool: pool, table: table, opts: opts.Decode, nulls: nulls}
}

// Query returns the SELECT issued for the configured table and columns.
func (s *PostgresSource) Query() string {
	cols := s.opts.Columns
	return "SELECT " +
		pgx.Identifier{cols.CustomerID}.Sanitize() + "::text, " +
		pgx.Identifier{cols.Invoice}.Sanitize() + "::text, " +
		pgx.Identifier{cols.InvoiceDate}.Sanitize() + "::timestamp" +
		" FROM " + pgx.Identifier(strings.Split(s.table, ".")).Sanitize()
}

func (s *PostgresSource) Load(ctx context.Context) ([]model.RawTransaction, error) {
	rows, err := s.pool.Query(ctx, s.Query())
	if err != nil {
		return nil, s.classify(err)
	}
	defer rows.Close()

	var out []model.RawTransaction
	for rows.Next() {
		var (
			customer pgtype.Text
			invoice  pgtype.Text
			ts       pgtype.Timestamp
		)
		if err := rows.Scan(&customer, &invoice, &ts); err != nil {
			return nil, schemaWrapf(err, "ingest: scan row %d of %s", len(out)+1, s.table)
		}
		if !ts.Valid {
			return nil, schemaErrorf("ingest: row %d of %s: null %s", len(out)+1, s.table, s.opts.Columns.InvoiceDate)
		}

		tx := model.RawTransaction{
			InvoiceID:   strings.TrimSpace(invoice.String),
			InvoiceDate: ts.Time,
		}
		if id := strings.TrimSpace(customer.String); customer.Valid {
			if _, null := s.nulls[id]; !null {
				id = NormalizeCustomerID(id)
				tx.CustomerID = &id
			}
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(err)
	}

	zap.L().Debug("ingest: loaded postgres rows", zap.String("table", s.table), zap.Int("rows", len(out)))
	return out, nil
}

func (s *PostgresSource) classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUndefinedColumn, sqlStateUndefinedTable:
			return schemaWrapf(err, "ingest: query %s", s.table)
		}
	}
	return accessWrapf(err, "ingest: query %s", s.table)
}

func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}
