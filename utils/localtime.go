package utils

import (
	"fmt"
	"regexp"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// IsDate accepts YYYY-MM-DD strings that name a real calendar day.
func IsDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// IsClock accepts HH:mm with 00-23 hours and 00-59 minutes.
func IsClock(s string) bool {
	if !clockPattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(ClockLayout, s)
	return err == nil
}

// ComposeLocal combines a calendar date and a wall-clock time in loc into one
// instant. The result keeps loc; store it with UTC().
func ComposeLocal(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if !IsDate(date) {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	if !IsClock(clock) {
		return time.Time{}, fmt.Errorf("invalid time %q", clock)
	}
	return time.ParseInLocation(DateLayout+" "+ClockLayout, date+" "+clock, loc)
}

// StartOfDay returns the first instant of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// LoadLocation falls back to UTC for empty or unknown names.
func LoadLocation(name string) *time.Location {
	if loc, ok := ParseLocation(name); ok {
		return loc
	}
	return time.UTC
}

// ParseLocation resolves an IANA zone name such as "Asia/Ho_Chi_Minh".
func ParseLocation(name string) (*time.Location, bool) {
	if name == "" {
		return nil, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	return loc, true
}
