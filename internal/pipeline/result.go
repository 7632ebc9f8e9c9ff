package pipeline

import (
	"github.com/tyemirov/ridemapper/internal/activity"
	"github.com/tyemirov/ridemapper/internal/stats"
)

// Status is the lifecycle state of one pipeline run.
type Status string

const (
	// StatusLoading marks a run that has not completed yet.
	StatusLoading Status = "loading"
	// StatusReady marks a run that produced activities and statistics.
	StatusReady Status = "ready"
	// StatusFailed marks a run aborted by an error; no partial data is kept.
	StatusFailed Status = "failed"
)

// Result carries the outcome of one run to the presentation layer.
type Result struct {
	Status     Status
	UserID     string
	Activities []activity.NormalizedActivity
	Stats      stats.Summary
	Err        error
}

// Loading returns the placeholder result shown while a run is in flight.
func Loading() Result {
	return Result{Status: StatusLoading}
}

func ready(userID string, activities []activity.NormalizedActivity) Result {
	return Result{
		Status:     StatusReady,
		UserID:     userID,
		Activities: activities,
		Stats:      stats.Summarize(activities),
	}
}

func failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}
