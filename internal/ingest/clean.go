package ingest

import (
	"strings"

	"github.com/sells-group/cohort-cli/internal/model"
)

// Stats counts what cleaning kept and dropped.
type Stats struct {
	Read            int `json:"read" yaml:"read"`
	MissingCustomer int `json:"missing_customer" yaml:"missing_customer"`
	MissingInvoice  int `json:"missing_invoice" yaml:"missing_invoice"`
	Cancelled       int `json:"cancelled" yaml:"cancelled"`
	Kept            int `json:"kept" yaml:"kept"`
}

// Clean keeps transactions that have a customer and a non-cancelled invoice.
// A row is cancelled when its invoice id starts with cancelPrefix
// (case-sensitive).
func Clean(raw []model.RawTransaction, cancelPrefix string) ([]model.Transaction, Stats) {
	stats := Stats{Read: len(raw)}
	kept := make([]model.Transaction, 0, len(raw))

	for _, r := range raw {
		switch {
		case r.CustomerID == nil || *r.CustomerID == "":
			stats.MissingCustomer++
		case r.InvoiceID == "":
			stats.MissingInvoice++
		case strings.HasPrefix(r.InvoiceID, cancelPrefix):
			stats.Cancelled++
		default:
			kept = append(kept, model.Transaction{
				CustomerID:  *r.CustomerID,
				InvoiceID:   r.InvoiceID,
				InvoiceDate: r.InvoiceDate,
			})
		}
	}

	stats.Kept = len(kept)
	return kept, stats
}
