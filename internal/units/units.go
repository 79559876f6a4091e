package units

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briangreenhill/moto/internal/geo"
)

type System string

const (
	Metric   System = "metric"
	Imperial System = "imperial"
)

const (
	milesPerKilometer = 0.621371
	feetPerMeter      = 3.28084
)

var ErrUnknownSystem = errors.New("unknown unit system")

func ParseSystem(s string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metric", "km":
		return Metric, nil
	case "imperial", "mi":
		return Imperial, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSystem, s)
}

// Distance formats meters as kilometers or miles.
func (s System) Distance(meters float64) string {
	km := meters / 1000
	if s == Imperial {
		return fmt.Sprintf("%.2f mi", km*milesPerKilometer)
	}
	return fmt.Sprintf("%.2f km", km)
}

// Speed formats meters per second.
func (s System) Speed(mps float64) string {
	kmh := mps * 3.6
	if s == Imperial {
		return fmt.Sprintf("%.1f mph", kmh*milesPerKilometer)
	}
	return fmt.Sprintf("%.1f km/h", kmh)
}

// Altitude formats meters as meters or feet.
func (s System) Altitude(meters float64) string {
	if s == Imperial {
		return fmt.Sprintf("%.0f ft", meters*feetPerMeter)
	}
	return fmt.Sprintf("%.0f m", meters)
}

// Heading labels the course of a fix, or "N/A" when it has none.
func Heading(fix geo.Fix) string {
	if !fix.HasCourse() {
		return "N/A"
	}
	return geo.Compass(fix.Course)
}

// Duration renders d as "1h 2m 3s", dropping leading zero components.
func Duration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
