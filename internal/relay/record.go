package relay

import (
	"bytes"
	"encoding/json"

	"serpgrab/pkg/errors"
)

// Record is one geolocation result. Fields are kept as raw JSON so they are
// forwarded exactly as posted; fields the client omitted stay omitted.
type Record struct {
	Lat         json.RawMessage `json:"lat,omitempty"`
	Lon         json.RawMessage `json:"lon,omitempty"`
	Probability json.RawMessage `json:"probability,omitempty"`
	Image       json.RawMessage `json:"image,omitempty"`
	Detections  json.RawMessage `json:"detections,omitempty"`
}

// ErrMissingCoordinates is returned when lat or lon is absent
var ErrMissingCoordinates = errors.Malformed("Missing required lat/lon fields.")

// Validate checks that lat and lon are present. A field is absent when it
// is missing, null, false or an empty string. Numeric zero is a coordinate.
func (r Record) Validate() error {
	if !present(r.Lat) || !present(r.Lon) {
		return ErrMissingCoordinates
	}
	return nil
}

var absent = [][]byte{[]byte("null"), []byte("false"), []byte(`""`)}

func present(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	for _, a := range absent {
		if bytes.Equal(v, a) {
			return false
		}
	}
	return true
}
