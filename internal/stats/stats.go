// Package stats derives ride summaries from normalized activities.
package stats

import (
	"math"
	"strings"

	"github.com/tyemirov/ridemapper/internal/activity"
)

// Summary is the derived overview of one activity collection.
type Summary struct {
	RideCount       int     `json:"ride_count"`
	TotalDistanceKm float64 `json:"total_distance_km"`
	ModalWeekday    *string `json:"modal_weekday"`
	LastRideDate    *string `json:"last_ride_date"`
}

// Summarize computes the summary. Activities are expected most recent first;
// the first element supplies LastRideDate.
func Summarize(activities []activity.NormalizedActivity) Summary {
	summary := Summary{RideCount: len(activities)}
	if len(activities) == 0 {
		return summary
	}

	var totalHundredths int64
	for _, normalized := range activities {
		totalHundredths += int64(math.Round(normalized.DistanceKm * 100))
	}
	summary.TotalDistanceKm = float64(totalHundredths) / 100

	modalWeekday := ModalWeekday(activities)
	summary.ModalWeekday = &modalWeekday
	lastRideDate := activities[0].Date
	summary.LastRideDate = &lastRideDate
	return summary
}

// ModalWeekday returns the most frequent weekday. Ties go to the weekday that
// appears first in activities. Returns "" for an empty collection.
func ModalWeekday(activities []activity.NormalizedActivity) string {
	counts := make(map[string]int, 7)
	order := make([]string, 0, 7)
	for _, normalized := range activities {
		weekday := WeekdayOf(normalized.Date)
		if _, seen := counts[weekday]; !seen {
			order = append(order, weekday)
		}
		counts[weekday]++
	}

	modal := ""
	highest := 0
	for _, weekday := range order {
		if counts[weekday] > highest {
			modal = weekday
			highest = counts[weekday]
		}
	}
	return modal
}

// WeekdayOf extracts the leading comma-delimited segment of a formatted date.
func WeekdayOf(date string) string {
	weekday, _, _ := strings.Cut(date, ",")
	return strings.TrimSpace(weekday)
}
