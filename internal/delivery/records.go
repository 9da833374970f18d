package delivery

import (
	"fmt"
	"math"
	"time"
)

// Status is the presentation state of a delivery.
type Status string

const (
	StatusOnTime    Status = "On Time"
	StatusDelayed   Status = "Delayed"
	StatusDelivered Status = "Delivered"
	StatusPending   Status = "Pending"
	StatusAnomaly   Status = "Anomaly"
)

// Statuses lists every status in chart order.
var Statuses = []Status{StatusOnTime, StatusDelayed, StatusDelivered, StatusPending, StatusAnomaly}

// DefaultDelayTolerance is the slack, in minutes, allowed over a prediction.
const DefaultDelayTolerance = 30.0

// DelayRule decides between On Time and Delayed: a delivery is late when its
// actual duration exceeds the prediction by more than Tolerance minutes.
type DelayRule struct {
	Tolerance float64
}

// Status classifies a delivery that was not flagged as an anomaly.
func (d DelayRule) Status(actual float64, predicted *float64, signed bool) Status {
	switch {
	case !signed:
		return StatusPending
	case predicted == nil:
		return StatusDelivered
	case actual > *predicted+d.Tolerance:
		return StatusDelayed
	}
	return StatusOnTime
}

// Record is one row of the delivery table.
type Record struct {
	ID                  string   `json:"id"`
	CustomerName        string   `json:"customerName"`
	Destination         string   `json:"destination"`
	Status              Status   `json:"status"`
	ActualTravelTime    float64  `json:"actualTravelTime"`
	PredictedTravelTime *float64 `json:"predictedTravelTime,omitempty"`
	DeliveryDate        string   `json:"deliveryDate"`
}

// BuildRecords joins every row with its observation (if any) and anomaly flag.
// anomalyRows holds row indices, not observation positions.
func BuildRecords(rows []Row, obs []Observation, anomalyRows []int, rule DelayRule) []Record {
	byRow := make(map[int]Observation, len(obs))
	for _, o := range obs {
		byRow[o.Row] = o
	}
	flagged := make(map[int]bool, len(anomalyRows))
	for _, i := range anomalyRows {
		flagged[i] = true
	}

	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec := Record{
			ID:           firstNonEmpty(r.Get(ColOrderID), fmt.Sprintf("row-%d", r.Index+1)),
			CustomerName: firstNonEmpty(r.Get(ColCustomerName), r.Get(ColDeliveryUserID)),
			Destination:  firstNonEmpty(r.Get(ColDestination), r.Get(ColAOIID), r.Get(ColFromCity)),
			DeliveryDate: deliveryDate(r),
		}
		o, hasObs := byRow[r.Index]
		if hasObs {
			rec.ActualTravelTime = round1(o.Actual)
			if o.Predicted != nil {
				p := round1(*o.Predicted)
				rec.PredictedTravelTime = &p
			}
		}
		if flagged[r.Index] {
			rec.Status = StatusAnomaly
		} else {
			rec.Status = rule.Status(o.Actual, o.Predicted, r.Get(ColSignTime) != "")
		}
		out = append(out, rec)
	}
	return out
}

func deliveryDate(r Row) string {
	for _, col := range []string{ColSignTime, ColReceiptTime} {
		if t, _, ok := rowTime(r, col); ok {
			return formatDate(t)
		}
	}
	return r.Get(ColDS)
}

func formatDate(t time.Time) string {
	if t.Year() == 0 {
		return t.Format("Jan 2")
	}
	return t.Format("2006-01-02")
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func rowWarning(r Row, msg string) string {
	if id := r.Get(ColOrderID); id != "" {
		return fmt.Sprintf("row %d (order %s): %s", r.Index+1, id, msg)
	}
	return fmt.Sprintf("row %d: %s", r.Index+1, msg)
}

// KPIs are the dashboard headline numbers.
type KPIs struct {
	TotalDeliveries int     `json:"totalDeliveries"`
	OnTimeCount     int     `json:"onTimeCount"`
	OnTimeRate      float64 `json:"onTimeRate"`
	AnomalyCount    int     `json:"anomalyCount"`
}

// ComputeKPIs counts records. OnTimeRate is a percentage with one decimal.
func ComputeKPIs(records []Record) KPIs {
	k := KPIs{TotalDeliveries: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusOnTime:
			k.OnTimeCount++
		case StatusAnomaly:
			k.AnomalyCount++
		}
	}
	if k.TotalDeliveries > 0 {
		k.OnTimeRate = round1(float64(k.OnTimeCount) / float64(k.TotalDeliveries) * 100)
	}
	return k
}

// StatusCount is one bar of the status chart.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// CountByStatus returns counts for statuses present in records, in Statuses order.
func CountByStatus(records []Record) []StatusCount {
	counts := map[Status]int{}
	for _, r := range records {
		counts[r.Status]++
	}
	out := []StatusCount{}
	for _, s := range Statuses {
		if n := counts[s]; n > 0 {
			out = append(out, StatusCount{Status: s, Count: n})
		}
	}
	return out
}

// Page describes one slice of the delivery table.
type Page struct {
	Number     int `json:"page"`
	Size       int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginate returns the 1-based page of records. size <= 0 returns everything
// as a single page; pages past the end are empty.
func Paginate(records []Record, page, size int) ([]Record, Page) {
	total := len(records)
	if size <= 0 {
		size, page = total, 1
	}
	if page < 1 {
		page = 1
	}
	p := Page{Number: page, Size: size, Total: total}
	if size == 0 {
		return []Record{}, p
	}
	p.TotalPages = (total + size - 1) / size
	start := (page - 1) * size
	if start >= total {
		return []Record{}, p
	}
	end := start + size
	if end > total {
		end = total
	}
	return records[start:end], p
}
