package fields

import (
	"fmt"
	"strings"
	"time"
)

// layouts seen on receipts from the banks residents actually use
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"2 January 2006",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04 PM",
	"3:04:05 PM",
}

// CombineDateTime parses the validated date and time strings and combines
// them into a single payment timestamp in UTC.
func CombineDateTime(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	var day time.Time
	var err error
	parsed := false
	for _, layout := range dateLayouts {
		if day, err = time.Parse(layout, date); err == nil {
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, fmt.Errorf("unrecognized payment date: %q", date)
	}

	parsed = false
	var at time.Time
	for _, layout := range timeLayouts {
		if at, err = time.Parse(layout, strings.ToUpper(clock)); err == nil {
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, fmt.Errorf("unrecognized transaction time: %q", clock)
	}

	return time.Date(day.Year(), day.Month(), day.Day(),
		at.Hour(), at.Minute(), at.Second(), 0, time.UTC), nil
}
