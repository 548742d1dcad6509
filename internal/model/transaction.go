package model

import "time"

// RawTransaction is one line item as read from the source, before cleaning.
type RawTransaction struct {
	CustomerID  *string   `json:"customer_id"` // nil when the source value is null
	InvoiceID   string    `json:"invoice_id"`
	InvoiceDate time.Time `json:"invoice_date"`
}

// Transaction is a line item that survived cleaning: it has a customer and
// is not a cancellation.
type Transaction struct {
	CustomerID  string    `json:"customer_id"`
	InvoiceID   string    `json:"invoice_id"`
	InvoiceDate time.Time `json:"invoice_date"`
}

// InvoiceMonth returns the invoice timestamp truncated to the first of its month.
func (t Transaction) InvoiceMonth() time.Time {
	return MonthStart(t.InvoiceDate)
}

// MonthStart truncates ts to 00:00 UTC on the first day of its month.
// The wall-clock year and month of ts are kept, whatever its location.
func MonthStart(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
}
