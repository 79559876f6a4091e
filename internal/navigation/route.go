package navigation

import (
	"strings"
	"time"

	"github.com/briangreenhill/moto/internal/geo"
)

type TransportType string

const (
	Automobile TransportType = "automobile"
	Walking    TransportType = "walking"
)

// Route is a precomputed path from the directions provider.
type Route struct {
	Name               string         `json:"name"`
	Distance           float64        `json:"distance"`
	ExpectedTravelTime time.Duration  `json:"expected_travel_time"`
	TransportType      TransportType  `json:"transport_type"`
	Destination        geo.Coordinate `json:"destination"`
	Steps              []Step         `json:"steps"`
}

// Step is one instruction of a route. Anchor is where the step begins.
type Step struct {
	Instruction string         `json:"instruction"`
	Anchor      geo.Coordinate `json:"anchor"`
	Distance    float64        `json:"distance"`
}

type Maneuver string

const (
	ManeuverUTurn    Maneuver = "u-turn"
	ManeuverLeft     Maneuver = "left"
	ManeuverRight    Maneuver = "right"
	ManeuverStraight Maneuver = "straight"
	ManeuverArrive   Maneuver = "arrive"
	ManeuverUnknown  Maneuver = "unknown"
)

// Maneuver guesses the turn type from the instruction wording.
func (s Step) Maneuver() Maneuver {
	text := strings.ToLower(s.Instruction)
	switch {
	case strings.Contains(text, "u-turn"):
		return ManeuverUTurn
	case strings.Contains(text, "left"):
		return ManeuverLeft
	case strings.Contains(text, "right"):
		return ManeuverRight
	case strings.Contains(text, "continue"), strings.Contains(text, "head"), strings.Contains(text, "straight"):
		return ManeuverStraight
	case strings.Contains(text, "arrive"), strings.Contains(text, "destination"):
		return ManeuverArrive
	default:
		return ManeuverUnknown
	}
}

// Place is a search result that can be used as a destination.
type Place struct {
	Name       string         `json:"name"`
	Address    string         `json:"address,omitempty"`
	Coordinate geo.Coordinate `json:"coordinate"`
}
