package breeding

import "time"

// Clock supplies "now". Jobs and the coordinator never call time.Now directly
// so that windows can be evaluated against a fixed day in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in Location (UTC when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns At.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// Today is the calendar day of c.Now() in the clock's own location.
func Today(c Clock) Date {
	return DateOf(c.Now())
}
