package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// MinutesPerDay bounds every Minute value; 24:00 is only valid as an end time.
const MinutesPerDay = 24 * 60

// Minute is a minute-of-day on a 24h clock.
type Minute int

var errClockFormat = errors.New("must be HH:MM")

// ParseClock parses an "HH:MM" 24-hour string. "24:00" is accepted so a
// window can run to the end of the day.
func ParseClock(s string) (Minute, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, errClockFormat
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, errClockFormat
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, errClockFormat
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, errClockFormat
	}
	return Minute(h*60 + m), nil
}

func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m Minute) Valid() bool {
	return m >= 0 && m <= MinutesPerDay
}

// ParseDate parses a YYYY-MM-DD string into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, errors.New("must be YYYY-MM-DD")
	}
	return t, nil
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// DateOf returns the calendar date of t in its own location, as midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MinuteOf returns the minute-of-day of t in its own location, rounded up
// when t is not on a minute boundary.
func MinuteOf(t time.Time) Minute {
	m := Minute(t.Hour()*60 + t.Minute())
	if t.Second() > 0 || t.Nanosecond() > 0 {
		m++
	}
	return m
}

// DayOfWeek returns 0 for Sunday through 6 for Saturday.
func DayOfWeek(date time.Time) int16 {
	return int16(date.Weekday())
}
