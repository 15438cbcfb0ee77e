package geodesy

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDateTime reports a timestamp that could not be parsed as an
// ISO-8601 instant.
var ErrInvalidDateTime = errors.New("invalid date/time")

// FractionalYears converts a time instant to a fractional-year epoch, the
// time scale the IGRF coefficient tables are tabulated in. The fraction is
// the elapsed share of the calendar year, so leap years divide by 366 days.
func FractionalYears(t time.Time) float64 {
	t = t.UTC()
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(t.Year()+1, 1, 1, 0, 0, 0, 0, time.UTC)
	return float64(t.Year()) + float64(t.Sub(start))/float64(end.Sub(start))
}

// ParseInstant parses an ISO-8601 / RFC 3339 instant. A date without a time
// component (yyyy-mm-dd) is accepted as midnight UTC.
func ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not an ISO-8601 instant", ErrInvalidDateTime, s)
}
