package delivery

import (
	"errors"
	"fmt"
	"math"
)

const earthRadiusKM = 6371.0

// Haversine returns the great-circle distance in kilometres between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Feature is one input vector for the travel-time model.
type Feature struct {
	ReceiptLng      float64 `json:"receipt_lng"`
	ReceiptLat      float64 `json:"receipt_lat"`
	SignLng         float64 `json:"sign_lng"`
	SignLat         float64 `json:"sign_lat"`
	Hour            int     `json:"hour"`
	DayOfWeek       int     `json:"day_of_week"`
	DistanceKM      float64 `json:"distance_km"`
	CityEncoded     int     `json:"city_encoded"`
	TypecodeEncoded int     `json:"typecode_encoded"`
}

var knownCities = map[string]int{
	"Dar es Salaam": 0,
	"Dodoma":        1,
	"Mwanza":        2,
	"Arusha":        3,
	"Mbeya":         4,
}

// Encoder holds the categorical encodings for one pipeline run. It is not
// safe for concurrent use; build one per upload.
type Encoder struct {
	cities    map[string]int
	typecodes map[string]int
}

// NewEncoder returns an encoder seeded with the known city table.
func NewEncoder() *Encoder {
	cities := make(map[string]int, len(knownCities))
	for k, v := range knownCities {
		cities[k] = v
	}
	return &Encoder{cities: cities, typecodes: map[string]int{}}
}

// City encodes a city name; unknown cities map to 0.
func (e *Encoder) City(name string) int { return e.cities[name] }

// Typecode label-encodes code in first-seen order.
func (e *Encoder) Typecode(code string) int {
	if v, ok := e.typecodes[code]; ok {
		return v
	}
	v := len(e.typecodes)
	e.typecodes[code] = v
	return v
}

// Features builds the model input for r. Destination coordinates come from
// sign_lng/sign_lat, falling back to poi_lng/poi_lat.
func (e *Encoder) Features(r Row) (Feature, error) {
	recv, _, ok := rowTime(r, ColReceiptTime)
	if !ok {
		return Feature{}, errors.New(rowWarning(r, fmt.Sprintf("unparseable %s %q", ColReceiptTime, r.Get(ColReceiptTime))))
	}
	rLng, ok1 := r.Float(ColReceiptLng)
	rLat, ok2 := r.Float(ColReceiptLat)
	if !ok1 || !ok2 {
		return Feature{}, errors.New(rowWarning(r, "missing receipt coordinates"))
	}
	dLng, ok1 := r.Float(ColSignLng)
	dLat, ok2 := r.Float(ColSignLat)
	if !ok1 || !ok2 {
		dLng, ok1 = r.Float(ColPOILng)
		dLat, ok2 = r.Float(ColPOILat)
	}
	if !ok1 || !ok2 {
		return Feature{}, errors.New(rowWarning(r, "missing destination coordinates"))
	}
	return Feature{
		ReceiptLng:      rLng,
		ReceiptLat:      rLat,
		SignLng:         dLng,
		SignLat:         dLat,
		Hour:            recv.Hour(),
		DayOfWeek:       int(recv.Weekday()),
		DistanceKM:      Haversine(rLat, rLng, dLat, dLng),
		CityEncoded:     e.City(r.Get(ColFromCity)),
		TypecodeEncoded: e.Typecode(r.Get(ColTypecode)),
	}, nil
}
