package monitor

import (
	"fmt"
	"time"

	"github.com/rewired-gh/volspike/internal/calendar"
)

// SessionClock knows the trading session window and the elapsed fraction of it.
type SessionClock struct {
	loc   *time.Location
	open  time.Duration
	close time.Duration
	now   func() time.Time
}

// NewSessionClock builds a clock for sessions running from open to close ("HH:MM") in loc.
func NewSessionClock(loc *time.Location, open, close string) (*SessionClock, error) {
	if loc == nil {
		loc = time.UTC
	}
	o, err := parseTimeOfDay(open)
	if err != nil {
		return nil, fmt.Errorf("invalid session open: %w", err)
	}
	c, err := parseTimeOfDay(close)
	if err != nil {
		return nil, fmt.Errorf("invalid session close: %w", err)
	}
	if c <= o {
		return nil, fmt.Errorf("session close %s must be after open %s", close, open)
	}
	return &SessionClock{loc: loc, open: o, close: c, now: time.Now}, nil
}

func parseTimeOfDay(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Location returns the session time zone.
func (c *SessionClock) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the session time zone.
func (c *SessionClock) Now() time.Time {
	return c.now().In(c.loc)
}

func (c *SessionClock) midnight(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// OpenAt returns the session open on the day of t.
func (c *SessionClock) OpenAt(t time.Time) time.Time {
	return c.midnight(t).Add(c.open)
}

// CloseAt returns the session close on the day of t.
func (c *SessionClock) CloseAt(t time.Time) time.Time {
	return c.midnight(t).Add(c.close)
}

// Fraction is the elapsed share of the session at t. It is not clamped.
func (c *SessionClock) Fraction(t time.Time) float64 {
	open := c.OpenAt(t)
	return float64(t.Sub(open)) / float64(c.close-c.open)
}

// InSession reports whether t is within [open, close).
func (c *SessionClock) InSession(t time.Time) bool {
	return !t.Before(c.OpenAt(t)) && t.Before(c.CloseAt(t))
}

// SessionDate is the calendar day of t in the session zone, as midnight UTC.
func (c *SessionClock) SessionDate(t time.Time) time.Time {
	return calendar.DayOf(t, c.loc)
}
