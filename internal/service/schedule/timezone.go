package schedule

import (
	"time"

	"github.com/golang-sql/civil"
)

// Today returns the calendar day of now in the user's timezone.
func Today(now time.Time, tz *time.Location) civil.Date {
	if tz == nil {
		tz = time.UTC
	}
	return civil.DateOf(now.In(tz))
}

// ParseTimezone parses a timezone string, returning UTC as fallback.
func ParseTimezone(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Clock supplies the current instant and the calendar day it falls on.
// The zero value uses time.Now in UTC.
type Clock struct {
	Location *time.Location
	NowFunc  func() time.Time
}

// Now returns the current instant in UTC, truncated to microseconds so it
// survives a round trip through either store unchanged.
func (c Clock) Now() time.Time {
	now := time.Now
	if c.NowFunc != nil {
		now = c.NowFunc
	}
	return now().UTC().Truncate(time.Microsecond)
}

// Today returns the current calendar day in the clock's location.
func (c Clock) Today() civil.Date {
	return Today(c.Now(), c.Location)
}

// Fixed returns a Clock frozen at t.
func Fixed(t time.Time, tz *time.Location) Clock {
	return Clock{Location: tz, NowFunc: func() time.Time { return t }}
}
