package delivery

import "time"

// Layouts accepted for receipt_time and sign_time. The "01-02 15:04:05" form
// is the yearless export used by last-mile datasets.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"01-02 15:04:05",
	"01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses s against the accepted layouts.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dsYear reads the year from a ds partition value such as 2024-06-04 or
// 20240604. Month-day values like 604 carry no year.
func dsYear(r Row) (int, bool) {
	ds := r.Get(ColDS)
	for _, l := range []string{"2006-01-02", "20060102", "2006/01/02"} {
		if t, err := time.Parse(l, ds); err == nil {
			return t.Year(), true
		}
	}
	return 0, false
}

// rowTime parses col of r. Yearless values (01-02 15:04:05) take their year
// from ds when ds has one and otherwise stay in year 0, where weekdays do not
// match the calendar.
func rowTime(r Row, col string) (t time.Time, yearless, ok bool) {
	t, ok = ParseTimestamp(r.Get(col))
	if !ok || t.Year() != 0 {
		return t, false, ok
	}
	if y, found := dsYear(r); found {
		t = time.Date(y, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	return t, true, true
}

// rowTimes returns the receipt and sign timestamps of r. A yearless sign time
// in January after a December receipt is moved into the following year.
func rowTimes(r Row) (recv, sign time.Time, recvOK, signOK bool) {
	recv, _, recvOK = rowTime(r, ColReceiptTime)
	sign, signYearless, signOK := rowTime(r, ColSignTime)
	if recvOK && signOK && signYearless && sign.Before(recv) &&
		recv.Month() == time.December && sign.Month() == time.January {
		sign = sign.AddDate(1, 0, 0)
	}
	return recv, sign, recvOK, signOK
}

// Duration returns the sign_time - receipt_time gap in minutes. ok is false
// when either timestamp is missing or unparseable.
func Duration(r Row) (minutes float64, ok bool) {
	recv, sign, ok1, ok2 := rowTimes(r)
	if !ok1 || !ok2 {
		return 0, false
	}
	return sign.Sub(recv).Minutes(), true
}

// Observation is a row with a positive delivery duration.
type Observation struct {
	Row       int
	Actual    float64
	Predicted *float64
}

// Observations extracts rows with a computable, strictly positive duration.
// Skipped rows are reported as warnings.
func Observations(rows []Row) ([]Observation, []string) {
	var obs []Observation
	var warnings []string
	for _, r := range rows {
		if r.Get(ColReceiptTime) == "" || r.Get(ColSignTime) == "" {
			continue
		}
		d, ok := Duration(r)
		if !ok {
			warnings = append(warnings, rowWarning(r, "unparseable timestamp"))
			continue
		}
		if d <= 0 {
			continue
		}
		obs = append(obs, Observation{Row: r.Index, Actual: d})
	}
	return obs, warnings
}

// Actuals returns the actual durations of obs in order.
func Actuals(obs []Observation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Actual
	}
	return out
}

// Predictions returns the predicted durations of obs in order.
func Predictions(obs []Observation) []*float64 {
	out := make([]*float64, len(obs))
	for i, o := range obs {
		out[i] = o.Predicted
	}
	return out
}
