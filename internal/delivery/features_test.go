package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	assert.Equal(t, 0.0, Haversine(-6.8, 39.28, -6.8, 39.28))
	// Dar es Salaam to Dodoma is roughly 400 km as the crow flies.
	d := Haversine(-6.7924, 39.2083, -6.1630, 35.7516)
	assert.InDelta(t, 388, d, 15)
	assert.InDelta(t, d, Haversine(-6.1630, 35.7516, -6.7924, 39.2083), 1e-9)
}

func TestEncoderCities(t *testing.T) {
	e := NewEncoder()
	assert.Equal(t, 0, e.City("Dar es Salaam"))
	assert.Equal(t, 1, e.City("Dodoma"))
	assert.Equal(t, 4, e.City("Mbeya"))
	assert.Equal(t, 0, e.City("Zanzibar"))
}

func TestEncoderTypecodesArePerInstance(t *testing.T) {
	a := NewEncoder()
	assert.Equal(t, 0, a.Typecode("702"))
	assert.Equal(t, 1, a.Typecode("701"))
	assert.Equal(t, 0, a.Typecode("702"))

	b := NewEncoder()
	assert.Equal(t, 0, b.Typecode("701"))
}

func TestFeatures(t *testing.T) {
	e := NewEncoder()
	r := Row{Index: 0, Fields: map[string]string{
		ColReceiptTime: "2024-06-02 14:30:00", // Sunday
		ColReceiptLng:  "35.74", ColReceiptLat: "-6.16",
		ColPOILng: "35.80", ColPOILat: "-6.20",
		ColFromCity: "Dodoma", ColTypecode: "701",
	}}
	f, err := e.Features(r)
	require.NoError(t, err)
	assert.Equal(t, 14, f.Hour)
	assert.Equal(t, 0, f.DayOfWeek)
	assert.Equal(t, 35.80, f.SignLng, "falls back to poi coordinates")
	assert.Equal(t, -6.20, f.SignLat)
	assert.Equal(t, 1, f.CityEncoded)
	assert.Equal(t, 0, f.TypecodeEncoded)
	assert.InDelta(t, Haversine(-6.16, 35.74, -6.20, 35.80), f.DistanceKM, 1e-12)

	r.Fields[ColSignLng], r.Fields[ColSignLat] = "35.76", "-6.17"
	f, err = e.Features(r)
	require.NoError(t, err)
	assert.Equal(t, 35.76, f.SignLng)
}

func TestFeaturesMissingFields(t *testing.T) {
	e := NewEncoder()
	_, err := e.Features(Row{Index: 3, Fields: map[string]string{ColReceiptTime: "bad"}})
	assert.EqualError(t, err, `row 4: unparseable receipt_time "bad"`)

	// Same 1-based numbering as the observation warnings.
	bad := Row{Index: 3, Fields: map[string]string{ColOrderID: "o9", ColReceiptTime: "2024-06-02 14:30:00"}}
	_, err = e.Features(bad)
	assert.EqualError(t, err, rowWarning(bad, "missing receipt coordinates"))
	assert.ErrorContains(t, err, "row 4 (order o9)")

	_, err = e.Features(Row{Fields: map[string]string{ColReceiptTime: "2024-06-02 14:30:00", ColReceiptLng: "1", ColReceiptLat: "2"}})
	assert.ErrorContains(t, err, "destination")
}
