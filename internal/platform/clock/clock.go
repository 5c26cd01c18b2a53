package clock

import (
	"time"

	"worktally/internal/platform/datekey"
)

// Clock abstracts time to keep usecases deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// DateProvider is the single source of "today" for everything that branches
// on whether a day is still open.
type DateProvider interface {
	Now() time.Time
	Today() string
	Location() *time.Location
}

type LocalDates struct {
	clock Clock
	loc   *time.Location
}

func NewLocalDates(c Clock, loc *time.Location) LocalDates {
	if c == nil {
		c = SystemClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	return LocalDates{clock: c, loc: loc}
}

func (d LocalDates) Now() time.Time {
	return d.clock.Now().In(d.loc)
}

func (d LocalDates) Today() string {
	return datekey.Format(d.Now())
}

func (d LocalDates) Location() *time.Location {
	return d.loc
}
