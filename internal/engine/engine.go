// Package engine runs the cohort retention computation over raw
// transactions. Two executors share one contract: native computes in Go,
// sqlite evaluates a declarative query in an in-memory database. For any
// input both return identical rows.
package engine

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cohort-cli/internal/cohort"
	"github.com/sells-group/cohort-cli/internal/model"
)

// Engine names.
const (
	Native = "native"
	SQLite = "sqlite"
)

// Engine computes retention rows from raw, uncleaned transactions.
type Engine interface {
	Name() string
	Compute(ctx context.Context, raw []model.RawTransaction) ([]model.RetentionRow, error)
}

// Options are shared by every engine.
type Options struct {
	CancelPrefix string // invoice prefix marking cancellations
	MaxMonth     int    // last month offset kept
}

// DefaultOptions returns the cleaning prefix and window of the retail export.
func DefaultOptions() Options {
	return Options{CancelPrefix: "C", MaxMonth: cohort.DefaultMaxMonth}
}

// New returns the engine registered under name.
func New(name string, opts Options) (Engine, error) {
	switch name {
	case Native:
		return NewNative(opts), nil
	case SQLite:
		return NewSQLite(opts), nil
	default:
		return nil, eris.Errorf("engine: unknown engine %q", name)
	}
}

// Names lists the available engines.
func Names() []string {
	return []string{Native, SQLite}
}
