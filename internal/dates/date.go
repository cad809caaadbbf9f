// Package dates provides a whole-day calendar date with no time or zone
// component. A Date is a day number counted from 1970-01-01, so adding days
// is plain integer arithmetic and never crosses a DST boundary.
package dates

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Layout is the ISO 8601 calendar date layout used for parsing and printing.
const Layout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// Date is a calendar day.
type Date int32

// New returns the Date for the given year, month and day. Out-of-range
// values are normalised the way time.Date normalises them.
func New(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime returns the calendar day of t in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	// Midnight UTC is an exact multiple of a day, before or after the epoch.
	return Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

// Today returns the current local calendar day.
func Today() Date {
	return FromTime(time.Now())
}

// Parse parses a YYYY-MM-DD string. A trailing time component
// ("2026-01-02T00:00:00Z") is accepted and discarded.
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'T'); i == len(Layout) {
		s = s[:i]
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level fixtures.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

func (d Date) String() string {
	return d.Time().Format(Layout)
}

// AddDays returns d shifted by n days, saturating at the ends of the Date
// range instead of wrapping.
func (d Date) AddDays(n int) Date {
	v := int64(d) + int64(n)
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return Date(v)
}

// Sub returns the number of days from o to d.
func (d Date) Sub(o Date) int {
	return int(int64(d) - int64(o))
}

func (d Date) Before(o Date) bool { return d < o }
func (d Date) After(o Date) bool  { return d > o }

// Max returns the later of a and b.
func Max(a, b Date) Date {
	if a > b {
		return a
	}
	return b
}

// Ptr returns a pointer to d, for optional date fields.
func Ptr(d Date) *Date {
	return &d
}

// Equal reports whether two optional dates hold the same value.
func Equal(a, b *Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalText lets a Date be read from TOML and other text formats.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
