package core

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date with no time zone attached. The zone is supplied
// when the day is turned into instants.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDay builds a day, normalizing out-of-range values like time.Date does.
func NewDay(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 12, 0, 0, 0, time.UTC), time.UTC)
}

// DayOf returns the calendar day t falls on in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Day: d}
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) Day {
	return DayOf(time.Now(), loc)
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, ErrInvalidDate)
	}
	return DayOf(t, time.UTC), nil
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Start returns local midnight of the day in loc.
func (d Day) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Bounds returns the closed interval of epoch milliseconds covering the day
// in loc: midnight through the next midnight minus one millisecond. Days
// shortened or stretched by DST keep their real length.
func (d Day) Bounds(loc *time.Location) (start, end int64) {
	start = d.Start(loc).UnixMilli()
	end = d.AddDays(1).Start(loc).UnixMilli() - 1
	return start, end
}

func (d Day) AddDays(n int) Day {
	return NewDay(d.Year, d.Month, d.Day+n)
}

// AddMonths moves by whole months, clamping the day to the end of the
// target month (Mar 31 - 1 month = Feb 28/29).
func (d Day) AddMonths(n int) Day {
	first := NewDay(d.Year, d.Month+time.Month(n), 1)
	last := NewDay(first.Year, first.Month+1, 0).Day
	if d.Day > last {
		return Day{Year: first.Year, Month: first.Month, Day: last}
	}
	return Day{Year: first.Year, Month: first.Month, Day: d.Day}
}

func (d Day) compare(o Day) int {
	switch {
	case d.Year != o.Year:
		return d.Year - o.Year
	case d.Month != o.Month:
		return int(d.Month) - int(o.Month)
	default:
		return d.Day - o.Day
	}
}

func (d Day) Before(o Day) bool { return d.compare(o) < 0 }
func (d Day) After(o Day) bool  { return d.compare(o) > 0 }
func (d Day) Equal(o Day) bool  { return d.compare(o) == 0 }

// CalendarWindow returns every day from today-months to today+months
// inclusive, in ascending order.
func CalendarWindow(today Day, months int) []Day {
	if months < 0 {
		months = -months
	}
	first := today.AddMonths(-months)
	last := today.AddMonths(months)
	var days []Day
	for d := first; !d.After(last); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Strip returns the 2*radius+1 consecutive days centred on center.
func Strip(center Day, radius int) []Day {
	if radius < 0 {
		radius = 0
	}
	days := make([]Day, 0, 2*radius+1)
	for i := -radius; i <= radius; i++ {
		days = append(days, center.AddDays(i))
	}
	return days
}
