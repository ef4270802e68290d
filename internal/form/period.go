package form

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var periodRe = regexp.MustCompile(`^\d{4}-\d{2}$`)

// fixedHolidays are national holidays by "MM-DD" that are never working
// days.
var fixedHolidays = map[string]bool{
	"01-26": true,
	"05-01": true,
	"08-15": true,
	"10-02": true,
	"12-25": true,
}

// CurrentPeriod returns the reporting period being filed at now: the
// calendar month before now, as "YYYY-MM".
func CurrentPeriod(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -1, 0).Format("2006-01")
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(period string) (year int, month time.Month, err error) {
	if !periodRe.MatchString(period) {
		return 0, 0, fmt.Errorf("period %q: want YYYY-MM", period)
	}
	y, _ := strconv.Atoi(period[:4])
	m, _ := strconv.Atoi(period[5:])
	if m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("period %q: month out of range", period)
	}
	return y, time.Month(m), nil
}

// ValidPeriod reports whether period is a well-formed "YYYY-MM".
func ValidPeriod(period string) bool {
	_, _, err := ParsePeriod(period)
	return err == nil
}

// DaysInPeriod returns the number of calendar days, or 31 for an invalid
// period.
func DaysInPeriod(period string) int {
	y, m, err := ParsePeriod(period)
	if err != nil {
		return 31
	}
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WorkingDays counts working days in period: Sundays, the 2nd and 4th
// Saturdays and fixed holidays are off. Invalid periods return 22.
func WorkingDays(period string) int {
	y, m, err := ParsePeriod(period)
	if err != nil {
		return 22
	}
	days := DaysInPeriod(period)
	working, saturdays := 0, 0
	for d := 1; d <= days; d++ {
		date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		switch date.Weekday() {
		case time.Sunday:
			continue
		case time.Saturday:
			saturdays++
			if saturdays == 2 || saturdays == 4 {
				continue
			}
		}
		if fixedHolidays[date.Format("01-02")] {
			continue
		}
		working++
	}
	return working
}
