package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/cohort-cli/internal/model"
)

// Columns names the source columns that carry the required fields.
type Columns struct {
	CustomerID  string
	Invoice     string
	InvoiceDate string
}

// DecodeOptions configures how source rows become raw transactions.
type DecodeOptions struct {
	Columns     Columns
	NullValues  []string // customer id values treated as null
	DateLayouts []string // tried in order
}

// Decoder turns records of a tabular source into raw transactions.
type Decoder struct {
	opts        DecodeOptions
	nulls       map[string]struct{}
	customerIdx int
	invoiceIdx  int
	dateIdx     int
	row         int
}

// NewDecoder resolves the required columns in header. Names match exactly
// after stripping a UTF-8 byte order mark and surrounding whitespace.
func NewDecoder(header []string, opts DecodeOptions) (*Decoder, error) {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		if _, dup := idx[col]; !dup {
			idx[col] = i
		}
	}

	lookup := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, schemaErrorf("ingest: missing required column %q (header: %q)", name, header)
		}
		return i, nil
	}

	d := &Decoder{opts: opts, nulls: make(map[string]struct{}, len(opts.NullValues))}
	for _, v := range opts.NullValues {
		d.nulls[strings.TrimSpace(v)] = struct{}{}
	}

	var err error
	if d.customerIdx, err = lookup(opts.Columns.CustomerID); err != nil {
		return nil, err
	}
	if d.invoiceIdx, err = lookup(opts.Columns.Invoice); err != nil {
		return nil, err
	}
	if d.dateIdx, err = lookup(opts.Columns.InvoiceDate); err != nil {
		return nil, err
	}

	return d, nil
}

// Decode converts the next data record.
func (d *Decoder) Decode(record []string) (model.RawTransaction, error) {
	d.row++

	ts, err := d.parseDate(field(record, d.dateIdx))
	if err != nil {
		return model.RawTransaction{}, err
	}

	return model.RawTransaction{
		CustomerID:  d.customerID(field(record, d.customerIdx)),
		InvoiceID:   strings.TrimSpace(field(record, d.invoiceIdx)),
		InvoiceDate: ts,
	}, nil
}

func (d *Decoder) customerID(raw string) *string {
	raw = strings.TrimSpace(raw)
	if _, null := d.nulls[raw]; null {
		return nil
	}
	id := NormalizeCustomerID(raw)
	return &id
}

func (d *Decoder) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, schemaErrorf("ingest: row %d: empty %s", d.row, d.opts.Columns.InvoiceDate)
	}
	ts, ok := ParseTimestamp(raw, d.opts.DateLayouts)
	if !ok {
		return time.Time{}, schemaErrorf("ingest: row %d: cannot parse %s %q", d.row, d.opts.Columns.InvoiceDate, raw)
	}
	return ts, nil
}

// field returns record[i], or "" when the record is short.
func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return record[i]
}

// ParseTimestamp parses s with the first matching layout, in UTC.
func ParseTimestamp(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// NormalizeCustomerID rewrites integral float renderings ("13085.0") as
// plain integers so the same customer is not split across spellings.
// Other values are returned unchanged.
func NormalizeCustomerID(s string) string {
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1<<53 {
		return s
	}
	return strconv.FormatInt(int64(f), 10)
}
