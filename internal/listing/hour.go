package listing

import (
	"regexp"
	"strconv"
	"strings"
)

var reClock = regexp.MustCompile(`(?i)(\d{1,2})(?::\d{2})?\s*([ap])\.?m\b`)

// afterHoursLast is the latest am hour still counted as part of the previous night.
const afterHoursLast = 6

// StartHour converts the first am/pm token of a time range into a sortable hour.
//
// 12am is 0 and 12pm is 12 as usual, but 1am-6am map to 25-30 so that a night's
// after-hours slots sort after its 11pm slot. Text without a usable token is 0.
func StartHour(timeText string) int {
	m := reClock.FindStringSubmatch(timeText)
	if m == nil {
		return 0
	}
	h, err := strconv.Atoi(m[1])
	if err != nil || h < 1 || h > 12 {
		return 0
	}
	if strings.EqualFold(m[2], "p") {
		if h == 12 {
			return 12
		}
		return h + 12
	}
	switch {
	case h == 12:
		return 0
	case h <= afterHoursLast:
		return h%12 + 24
	default:
		return h
	}
}
