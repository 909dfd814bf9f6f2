package artifacts

import (
	"time"

	"github.com/rotisserie/eris"
)

// Clock renders run timestamps in the configured reporting timezone, so
// artifact directories sort consistently regardless of where the pipeline
// runs.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock loads the named timezone, e.g. "America/Vancouver".
func NewClock(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "artifacts: load timezone %s", timezone)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewClockAt returns a Clock frozen at t, for tests.
func NewClockAt(timezone string, t time.Time) (*Clock, error) {
	c, err := NewClock(timezone)
	if err != nil {
		return nil, err
	}
	c.now = func() time.Time { return t }
	return c, nil
}

// NowISO returns the current time in ISO-8601 form with seconds precision.
func (c *Clock) NowISO() string {
	return c.now().In(c.loc).Format("2006-01-02T15:04:05-07:00")
}

// Stamp returns a filesystem-safe timestamp for artifact directory names.
func (c *Clock) Stamp() string {
	return c.now().In(c.loc).Format("20060102_150405")
}
