package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/cohort-cli/internal/cohort"
	"github.com/sells-group/cohort-cli/internal/ingest"
	"github.com/sells-group/cohort-cli/internal/model"
)

// NativeEngine cleans and aggregates in memory.
type NativeEngine struct {
	opts Options
}

// NewNative creates a NativeEngine.
func NewNative(opts Options) *NativeEngine {
	return &NativeEngine{opts: opts}
}

func (e *NativeEngine) Name() string { return Native }

func (e *NativeEngine) Compute(ctx context.Context, raw []model.RawTransaction) ([]model.RetentionRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txns, stats := ingest.Clean(raw, e.opts.CancelPrefix)
	zap.L().Debug("engine: cleaned transactions",
		zap.String("engine", Native),
		zap.Int("read", stats.Read),
		zap.Int("missing_customer", stats.MissingCustomer),
		zap.Int("missing_invoice", stats.MissingInvoice),
		zap.Int("cancelled", stats.Cancelled),
		zap.Int("kept", stats.Kept),
	)

	return cohort.Compute(txns, cohort.Options{MaxMonth: e.opts.MaxMonth}), nil
}
