package period

import (
	"fmt"
	"time"
)

// LabelLayout is the month-year format used by the source table, e.g. "Mar-24".
const LabelLayout = "Jan-06"

// Label returns the month-year label of the calendar month before now.
// The month is stepped back from the first of now's month so that dates like
// March 31st land on February rather than being normalized into March.
func Label(now time.Time) string {
	return Previous(now).Format(LabelLayout)
}

// Previous returns midnight on the first day of the month before now, in now's location.
func Previous(now time.Time) time.Time {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -1, 0)
}

// ParseAsOf parses a YYYY-MM-DD reference date. An empty string means today.
func ParseAsOf(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid as-of date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
