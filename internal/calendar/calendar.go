// Package calendar converts between ROC and CE trading-day notations and walks the trading calendar.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// rocOffset is the difference between CE and ROC (Minguo) years.
const rocOffset = 1911

// ParseDate accepts ROC dates (1140724, 114/07/24, 114-07-24) and CE dates
// (20250724, 2025-07-24, 2025/07/24). The result is midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	raw := strings.TrimSpace(s)
	digits := strings.NewReplacer("-", "", "/", "").Replace(raw)
	if digits == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if _, err := strconv.Atoi(digits); err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}

	var year, month, day int
	switch len(digits) {
	case 7:
		// ROC: YYYMMDD
		year, _ = strconv.Atoi(digits[:3])
		year += rocOffset
		month, _ = strconv.Atoi(digits[3:5])
		day, _ = strconv.Atoi(digits[5:])
	case 8:
		year, _ = strconv.Atoi(digits[:4])
		month, _ = strconv.Atoi(digits[4:6])
		day, _ = strconv.Atoi(digits[6:])
		if year < rocOffset {
			return time.Time{}, fmt.Errorf("invalid date %q: year %d", s, year)
		}
	case 6:
		// ROC years below 100 (e.g. 990101).
		year, _ = strconv.Atoi(digits[:2])
		year += rocOffset
		month, _ = strconv.Atoi(digits[2:4])
		day, _ = strconv.Atoi(digits[4:])
	default:
		return time.Time{}, fmt.Errorf("invalid date %q: unexpected length", s)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %q: out of range", s)
	}
	return t, nil
}

// FormatROC renders t as a ROC date. sep is placed between year, month and day.
func FormatROC(t time.Time, sep string) string {
	return fmt.Sprintf("%d%s%02d%s%02d", t.Year()-rocOffset, sep, int(t.Month()), sep, t.Day())
}

// FormatCE renders t as a CE date. sep is placed between year, month and day.
func FormatCE(t time.Time, sep string) string {
	return fmt.Sprintf("%04d%s%02d%s%02d", t.Year(), sep, int(t.Month()), sep, t.Day())
}

// IsTradingDay reports whether t falls on a weekday.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// ShiftTradingDays moves t by offset trading days, skipping weekends.
// An offset of zero returns t unchanged even on a weekend.
func ShiftTradingDays(t time.Time, offset int) time.Time {
	step := 1
	if offset < 0 {
		step = -1
		offset = -offset
	}
	for offset > 0 {
		t = t.AddDate(0, 0, step)
		if IsTradingDay(t) {
			offset--
		}
	}
	return t
}

// Today returns the current calendar day in loc, truncated to midnight UTC so it
// compares equal to ParseDate results.
func Today(loc *time.Location) time.Time {
	return DayOf(time.Now(), loc)
}

// DayOf returns the calendar day of t in loc as midnight UTC.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
