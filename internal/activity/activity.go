// Package activity turns raw provider activities into display-ready records.
package activity

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tyemirov/ridemapper/internal/polyline"
)

// DateLayout renders dates as "Monday, January 1, 2024".
const DateLayout = "Monday, January 2, 2006"

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	hoursPerDay      = 24
)

// RawActivity mirrors the provider's activity summary payload.
type RawActivity struct {
	StartDate   time.Time   `json:"start_date"`
	ElapsedTime int64       `json:"elapsed_time"`
	Distance    float64     `json:"distance"`
	Map         RawRouteMap `json:"map"`
}

// RawRouteMap holds the optional encoded route geometry.
type RawRouteMap struct {
	SummaryPolyline string `json:"summary_polyline"`
}

// NormalizedActivity is the display shape handed to the presentation layer.
type NormalizedActivity struct {
	Date       string           `json:"date"`
	Route      []polyline.Point `json:"route"`
	Duration   string           `json:"duration"`
	DistanceKm float64          `json:"distance_km"`
}

// NormalizeOptions controls locale-independent formatting choices.
type NormalizeOptions struct {
	Location *time.Location
}

// Normalize converts one raw activity. The boolean is false when the activity
// is skipped: either it has no route geometry (err is nil) or the geometry is
// malformed (err wraps polyline.ErrMalformed).
func Normalize(raw RawActivity, options NormalizeOptions) (NormalizedActivity, bool, error) {
	encodedRoute := strings.TrimSpace(raw.Map.SummaryPolyline)
	if encodedRoute == "" {
		return NormalizedActivity{}, false, nil
	}
	route, decodeErr := polyline.Decode(encodedRoute)
	if decodeErr != nil {
		return NormalizedActivity{}, false, fmt.Errorf("activity.normalize: %w", decodeErr)
	}
	location := options.Location
	if location == nil {
		location = time.UTC
	}
	return NormalizedActivity{
		Date:       raw.StartDate.In(location).Format(DateLayout),
		Route:      route,
		Duration:   FormatDuration(raw.ElapsedTime),
		DistanceKm: MetersToKilometers(raw.Distance),
	}, true, nil
}

// FormatDuration renders elapsed seconds as HH:MM:SS. Negative input clamps to
// zero and the hour field wraps at 24.
func FormatDuration(elapsedSeconds int64) string {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	hours := (elapsedSeconds / secondsPerHour) % hoursPerDay
	minutes := (elapsedSeconds % secondsPerHour) / secondsPerMinute
	seconds := elapsedSeconds % secondsPerMinute
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// MetersToKilometers converts and rounds half away from zero to two decimals.
// Dividing by ten first keeps whole-meter inputs exact at the .005 boundary.
func MetersToKilometers(meters float64) float64 {
	return math.Round(meters/10) / 100
}
