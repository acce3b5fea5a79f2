// Package timeutil resolves the day and clock arguments of CLI commands
// into local times.
package timeutil

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the canonical day format.
const DateLayout = "2006-01-02"

// StartOfDay returns midnight (00:00:00) of the given day in local time
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(time.Local).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// ParseDay parses "today", "yesterday", YYYY-MM-DD or DD/MM/YYYY relative
// to now and returns the day at midnight. An empty input means today.
// For ambiguous dates (like 05/06/2024), ISO format (YYYY-MM-DD) is preferred.
func ParseDay(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	switch strings.ToLower(input) {
	case "", "today":
		return StartOfDay(now), nil
	case "yesterday":
		return StartOfDay(now).AddDate(0, 0, -1), nil
	}

	if t, err := time.ParseInLocation(DateLayout, input, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("02/01/2006", input, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, buildDateParseError(input)
}

var (
	yearOnlyRe      = regexp.MustCompile(`^\d{4}$`)                // YYYY (year only)
	isoPartialRe    = regexp.MustCompile(`^\d{4}-\d{1,2}$`)        // YYYY-MM (missing day)
	isoPartialDayRe = regexp.MustCompile(`^\d{1,2}-\d{1,2}$`)      // MM-DD or DD-MM (missing year)
	euroPartialRe   = regexp.MustCompile(`^\d{1,2}/\d{1,2}$`)      // DD/MM (missing year)
	tooManyPartsRe  = regexp.MustCompile(`^\d+[-/]\d+[-/]\d+[-/]`) // Too many separators
)

// buildDateParseError creates a helpful error message based on the input pattern
func buildDateParseError(input string) error {
	switch {
	case yearOnlyRe.MatchString(input):
		return fmt.Errorf("incomplete date '%s': missing month and day (use format YYYY-MM-DD, e.g., %s-01-15)", input, input)
	case isoPartialRe.MatchString(input):
		return fmt.Errorf("incomplete date '%s': missing day (use format YYYY-MM-DD, e.g., %s-15)", input, input)
	case isoPartialDayRe.MatchString(input):
		return fmt.Errorf("incomplete date '%s': missing year (use format YYYY-MM-DD or DD/MM/YYYY, e.g., 2024-%s)", input, input)
	case euroPartialRe.MatchString(input):
		return fmt.Errorf("incomplete date '%s': missing year (use format DD/MM/YYYY, e.g., %s/2024)", input, input)
	case tooManyPartsRe.MatchString(input):
		return fmt.Errorf("invalid date '%s': too many date parts (use format YYYY-MM-DD or DD/MM/YYYY)", input)
	default:
		return fmt.Errorf("invalid date format '%s' (use today, yesterday, YYYY-MM-DD or DD/MM/YYYY)", input)
	}
}

// DayRange returns [start, end) covering days whole days ending on day.
func DayRange(day time.Time, days int) (start, end time.Time) {
	end = StartOfDay(day).AddDate(0, 0, 1)
	return end.AddDate(0, 0, -days), end
}

// FormatPeriod describes a DayRange result, e.g. "2024-07-01" or
// "2024-06-28 to 2024-07-01".
func FormatPeriod(start, end time.Time) string {
	last := end.AddDate(0, 0, -1)
	if !last.After(start) {
		return start.Format(DateLayout)
	}
	return start.Format(DateLayout) + " to " + last.Format(DateLayout)
}

// ParseClock combines an HH:MM value with the date of day.
func ParseClock(day time.Time, value string) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.Local), nil
}
