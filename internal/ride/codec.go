package ride

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a ride list into the document kept by the library.
func Encode(rides []Ride) ([]byte, error) {
	if rides == nil {
		rides = []Ride{}
	}
	data, err := json.Marshal(rides)
	if err != nil {
		return nil, fmt.Errorf("encoding rides: %w", err)
	}
	return data, nil
}

func Decode(data []byte) ([]Ride, error) {
	var rides []Ride
	if err := json.Unmarshal(data, &rides); err != nil {
		return nil, fmt.Errorf("decoding rides: %w", err)
	}
	return rides, nil
}

func EncodeRide(r Ride) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding ride %s: %w", r.ID, err)
	}
	return data, nil
}

func DecodeRide(data []byte) (Ride, error) {
	var r Ride
	if err := json.Unmarshal(data, &r); err != nil {
		return Ride{}, fmt.Errorf("decoding ride: %w", err)
	}
	return r, nil
}
