package predict

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KaramelBytes/deliverylens/internal/delivery"
)

// Kind tells which wire shape an Input was decoded from.
type Kind int

const (
	// KindRecords is a bare JSON array of feature objects.
	KindRecords Kind = iota + 1
	// KindEnvelope is an object wrapping the array: {"records": [...]}.
	KindEnvelope
)

func (k Kind) String() string {
	switch k {
	case KindRecords:
		return "records"
	case KindEnvelope:
		return "envelope"
	}
	return "unknown"
}

// Input is a prediction request resolved once at the boundary. Whatever the
// wire shape, Features holds the model rows.
type Input struct {
	Kind     Kind
	Features []delivery.Feature
}

// ErrEmptyInput is returned when a request carries no feature rows.
var ErrEmptyInput = errors.New("prediction input has no records")

// DecodeInput accepts either a bare array of features or {"records": [...]}.
func DecodeInput(data []byte) (Input, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Input{}, ErrEmptyInput
	}
	var in Input
	switch data[0] {
	case '[':
		in.Kind = KindRecords
		if err := json.Unmarshal(data, &in.Features); err != nil {
			return Input{}, fmt.Errorf("decode feature array: %w", err)
		}
	case '{':
		in.Kind = KindEnvelope
		var env struct {
			Records *[]delivery.Feature `json:"records"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return Input{}, fmt.Errorf("decode records envelope: %w", err)
		}
		if env.Records == nil {
			return Input{}, errors.New(`prediction envelope is missing "records"`)
		}
		in.Features = *env.Records
	default:
		return Input{}, errors.New("prediction input must be a JSON array or an object with \"records\"")
	}
	if len(in.Features) == 0 {
		return Input{}, ErrEmptyInput
	}
	return in, nil
}
