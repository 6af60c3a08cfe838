package chrono

import (
	"time"
)

// LogLayout is the layout of timestamps written to the update log.
const LogLayout = time.DateTime

var la *time.Location

func init() {
	var err error
	la, err = time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
}

// LA returns a [*time.Location] for America/Los_Angeles, the county
// publishes its numbers on pacific time.
func LA() *time.Location {
	return la
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in America/Los_Angeles.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(la)
}

// FixedTime is a TimeAPI that always returns the same instant.
type FixedTime struct {
	Time time.Time
}

func (f FixedTime) Now() time.Time {
	return f.Time.In(la)
}

// FormatLog formats a time the way it is written to the update log, to the second.
func FormatLog(t time.Time) string {
	return t.In(la).Format(LogLayout)
}
