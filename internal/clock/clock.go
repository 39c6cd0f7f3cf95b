package clock

import (
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("clock",
	fx.Provide(New),
)

// Clock is the source of "now" for anything that compares against today.
type Clock interface {
	Now() time.Time
}

type System struct{}

func New() Clock {
	return System{}
}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Today returns midnight UTC of the clock's current calendar day.
func Today(c Clock) time.Time {
	return StartOfDay(c.Now())
}

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
