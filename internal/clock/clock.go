// Package clock buckets instants into civil days in a fixed UTC+9
// calendar. Every temporal comparison in the core goes through these
// helpers so that one invocation sees one consistent "today" even if
// real time advances mid-call.
package clock

import "time"

// Zone is the fixed civil calendar for day bucketing.
var Zone = time.FixedZone("UTC+9", 9*60*60)

// Today returns the start-of-day instant containing now.
func Today(now time.Time) time.Time {
	k := now.In(Zone)
	return time.Date(k.Year(), k.Month(), k.Day(), 0, 0, 0, 0, Zone)
}

// Yesterday returns the start of the day before the one containing now.
func Yesterday(now time.Time) time.Time {
	return Today(now).AddDate(0, 0, -1)
}

// Tomorrow returns the start of the day after the one containing now.
func Tomorrow(now time.Time) time.Time {
	return Today(now).AddDate(0, 0, 1)
}

// DayKey returns the civil date as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.In(Zone).Format("2006-01-02")
}

// DaysBetween counts whole days from one instant to a later one.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
