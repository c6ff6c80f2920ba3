// utils/dates.go
package utils

import "time"

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// DayRange turns the inclusive days first..last into the half-open
// interval [midnight of first, midnight after last).
func DayRange(first, last time.Time) (time.Time, time.Time) {
	return BeginningOfDay(first), BeginningOfDay(last).AddDate(0, 0, 1)
}

// DaysBetween counts calendar days from start to end. Both dates are read
// in their own location, so a DST change does not lose a day.
func DaysBetween(start, end time.Time) int {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	from := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
