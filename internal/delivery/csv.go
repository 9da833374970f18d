// Package delivery turns uploaded delivery CSVs into rows, model features and
// presentation records.
package delivery

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names understood by the pipeline.
const (
	ColOrderID        = "order_id"
	ColFromDipanID    = "from_dipan_id"
	ColFromCity       = "from_city_name"
	ColDeliveryUserID = "delivery_user_id"
	ColPOILng         = "poi_lng"
	ColPOILat         = "poi_lat"
	ColAOIID          = "aoi_id"
	ColReceiptTime    = "receipt_time"
	ColReceiptLng     = "receipt_lng"
	ColReceiptLat     = "receipt_lat"
	ColSignTime       = "sign_time"
	ColSignLng        = "sign_lng"
	ColSignLat        = "sign_lat"
	ColTypecode       = "typecode"
	ColDS             = "ds"
	ColCustomerName   = "customer_name"
	ColDestination    = "destination"
)

// MalformedCSVError is returned when the input cannot be tokenized as a
// comma-delimited file with a header row.
type MalformedCSVError struct {
	Line int
	Err  error
}

func (e *MalformedCSVError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed csv at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed csv: %v", e.Err)
}

func (e *MalformedCSVError) Unwrap() error { return e.Err }

// ErrMissingHeader marks input without a header row.
var ErrMissingHeader = errors.New("missing header row")

// Row is one data row keyed by header name. Index is the 0-based data row
// position (the header is not counted).
type Row struct {
	Index  int
	Fields map[string]string
}

// Get returns the trimmed value of column k, or "" when absent.
func (r Row) Get(k string) string { return r.Fields[k] }

// Float parses column k as a float.
func (r Row) Float(k string) (float64, bool) {
	v := r.Get(k)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Table is a parsed CSV upload.
type Table struct {
	Header []string
	Rows   []Row
}

// ParseCSV reads a comma-delimited file with a header row. Short rows are
// padded with empty values; blank lines are skipped.
func ParseCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MalformedCSVError{Err: ErrMissingHeader}
	}
	if err != nil {
		return nil, malformed(err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	if len(header) == 0 || (len(header) == 1 && header[0] == "") {
		return nil, &MalformedCSVError{Line: 1, Err: ErrMissingHeader}
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if h == "" {
				continue
			}
			if j < len(rec) {
				fields[h] = strings.TrimSpace(rec[j])
			} else {
				fields[h] = ""
			}
		}
		t.Rows = append(t.Rows, Row{Index: len(t.Rows), Fields: fields})
	}
	return t, nil
}

// malformed converts tokenizer errors; I/O errors from the reader pass through.
func malformed(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &MalformedCSVError{Line: pe.Line, Err: pe.Err}
	}
	return err
}

// UniqueCities counts distinct non-empty from_city_name values.
func UniqueCities(rows []Row) int {
	seen := map[string]struct{}{}
	for _, r := range rows {
		if c := r.Get(ColFromCity); c != "" {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}
