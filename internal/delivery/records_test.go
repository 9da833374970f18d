package delivery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }

func TestDelayRuleStatus(t *testing.T) {
	rule := DelayRule{Tolerance: DefaultDelayTolerance}
	tests := []struct {
		name      string
		actual    float64
		predicted *float64
		signed    bool
		want      Status
	}{
		{"unsigned is pending", 50, fp(10), false, StatusPending},
		{"no prediction is delivered", 50, nil, true, StatusDelivered},
		{"within tolerance", 30, fp(10), true, StatusOnTime},
		{"exactly at tolerance", 40, fp(10), true, StatusOnTime},
		{"past tolerance", 40.5, fp(10), true, StatusDelayed},
		{"faster than predicted", 5, fp(10), true, StatusOnTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rule.Status(tt.actual, tt.predicted, tt.signed))
		})
	}
}

func TestBuildRecords(t *testing.T) {
	tbl, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	obs, _ := Observations(tbl.Rows)
	obs[0].Predicted = fp(35)
	obs[1].Predicted = fp(30)

	recs := BuildRecords(tbl.Rows, obs, nil, DelayRule{Tolerance: 30})
	require.Len(t, recs, 3)

	assert.Equal(t, "o1", recs[0].ID)
	assert.Equal(t, "u1", recs[0].CustomerName)
	assert.Equal(t, "a1", recs[0].Destination)
	assert.Equal(t, "2024-06-04", recs[0].DeliveryDate)
	assert.Equal(t, StatusOnTime, recs[0].Status)
	assert.Equal(t, 40.0, recs[0].ActualTravelTime)
	require.NotNil(t, recs[0].PredictedTravelTime)
	assert.Equal(t, 35.0, *recs[0].PredictedTravelTime)

	assert.Equal(t, StatusDelayed, recs[1].Status)
	assert.Equal(t, StatusPending, recs[2].Status)
	assert.Nil(t, recs[2].PredictedTravelTime)

	recs = BuildRecords(tbl.Rows, obs, []int{1}, DelayRule{Tolerance: 30})
	assert.Equal(t, StatusAnomaly, recs[1].Status)
}

func TestBuildRecordsFallbacks(t *testing.T) {
	rows := []Row{{Index: 4, Fields: map[string]string{
		ColCustomerName: "Amina", ColDestination: "Kariakoo", ColSignTime: "06-04 10:00:00", ColDS: "604",
	}}}
	recs := BuildRecords(rows, nil, nil, DelayRule{})
	require.Len(t, recs, 1)
	assert.Equal(t, "row-5", recs[0].ID)
	assert.Equal(t, "Amina", recs[0].CustomerName)
	assert.Equal(t, "Kariakoo", recs[0].Destination)
	assert.Equal(t, "Jun 4", recs[0].DeliveryDate)
	assert.Equal(t, StatusDelivered, recs[0].Status)

	rows[0].Fields[ColDS] = "2024-06-04"
	recs = BuildRecords(rows, nil, nil, DelayRule{})
	assert.Equal(t, "2024-06-04", recs[0].DeliveryDate)
}

func TestComputeKPIsAndChart(t *testing.T) {
	recs := []Record{
		{Status: StatusOnTime}, {Status: StatusOnTime}, {Status: StatusAnomaly},
		{Status: StatusPending}, {Status: StatusDelayed}, {Status: StatusOnTime},
	}
	k := ComputeKPIs(recs)
	assert.Equal(t, KPIs{TotalDeliveries: 6, OnTimeCount: 3, OnTimeRate: 50, AnomalyCount: 1}, k)

	assert.Equal(t, []StatusCount{
		{StatusOnTime, 3}, {StatusDelayed, 1}, {StatusPending, 1}, {StatusAnomaly, 1},
	}, CountByStatus(recs))

	assert.Equal(t, KPIs{}, ComputeKPIs(nil))
	assert.Empty(t, CountByStatus(nil))
}

func TestPaginate(t *testing.T) {
	recs := make([]Record, 7)
	for i := range recs {
		recs[i].ID = string(rune('a' + i))
	}
	tests := []struct {
		name      string
		page      int
		size      int
		wantIDs   string
		wantPages int
	}{
		{"first page", 1, 3, "abc", 3},
		{"last partial page", 3, 3, "g", 3},
		{"past the end", 4, 3, "", 3},
		{"page below one", 0, 3, "abc", 3},
		{"no size returns all", 2, 0, "abcdefg", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, p := Paginate(recs, tt.page, tt.size)
			var ids string
			for _, r := range got {
				ids += r.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, 7, p.Total)
		})
	}
}
