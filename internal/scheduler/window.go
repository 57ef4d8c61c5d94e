package scheduler

import (
	"fmt"
	"time"
)

// WindowFunc classifies an instant: due reports whether the instant falls
// inside the job's firing window, and marker names that window. A job
// body executes at most once per marker value.
type WindowFunc func(now time.Time) (marker string, due bool)

// DailyAt fires once per calendar day, inside [hh:mm, hh:mm+tolerance).
// The marker is the calendar date, the coarsest granularity a once-daily
// job needs.
func DailyAt(hour, minute int, tolerance time.Duration) WindowFunc {
	return func(now time.Time) (string, bool) {
		target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if now.Before(target) || now.Sub(target) >= tolerance {
			return "", false
		}
		return now.Format("2006-01-02"), true
	}
}

// HourlyAt fires once per hour, inside [xx:mm, xx:mm+tolerance). The
// marker is the hour bucket.
func HourlyAt(minute int, tolerance time.Duration) WindowFunc {
	return func(now time.Time) (string, bool) {
		target := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), minute, 0, 0, now.Location())
		if now.Before(target) || now.Sub(target) >= tolerance {
			return "", false
		}
		return now.Format("2006-01-02T15"), true
	}
}

// Every fires once per elapsed interval; every instant is due and the
// marker is the interval bucket the instant falls into.
func Every(interval time.Duration) WindowFunc {
	return func(now time.Time) (string, bool) {
		bucket := now.Truncate(interval)
		return fmt.Sprintf("%d", bucket.Unix()), true
	}
}
