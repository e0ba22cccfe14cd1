package festival

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"
)

// DefaultTimeZone is the time zone the schedule is published in.
const DefaultTimeZone = "America/Los_Angeles"

// DefaultDays is the length of the event week, Sunday through Labor Day.
const DefaultDays = 9

// Settings configures a Context. Zero values fall back to defaults.
type Settings struct {
	Year      int
	StartDate string // YYYY-MM-DD
	Days      int
	TimeZone  string
}

// Context holds the current festival year and its calendar.
type Context struct {
	mu    sync.RWMutex
	year  int
	start time.Time
	days  int
	loc   *time.Location
	clock func() time.Time
}

// NewContext builds a Context from settings.
func NewContext(s Settings) (*Context, error) {
	tz := s.TimeZone
	if tz == "" {
		tz = DefaultTimeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", tz, err)
	}

	year := s.Year
	if year == 0 {
		year = time.Now().In(loc).Year()
	}

	var start time.Time
	if s.StartDate != "" {
		start, err = time.ParseInLocation("2006-01-02", s.StartDate, loc)
		if err != nil {
			return nil, fmt.Errorf("parsing festival start date: %w", err)
		}
	} else {
		start = DefaultStart(year, loc)
	}

	days := s.Days
	if days <= 0 {
		days = DefaultDays
	}

	return &Context{
		year:  year,
		start: start,
		days:  days,
		loc:   loc,
		clock: time.Now,
	}, nil
}

// DefaultStart returns the Sunday eight days before Labor Day.
func DefaultStart(year int, loc *time.Location) time.Time {
	laborDay := time.Date(year, time.September, 1, 0, 0, 0, 0, loc)
	for laborDay.Weekday() != time.Monday {
		laborDay = laborDay.AddDate(0, 0, 1)
	}
	return laborDay.AddDate(0, 0, -8)
}

// Year returns the festival year.
func (c *Context) Year() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.year
}

// Location returns the festival time zone.
func (c *Context) Location() *time.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loc
}

// Start returns midnight of the first day.
func (c *Context) Start() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.start
}

// End returns midnight after the last day.
func (c *Context) End() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.start.AddDate(0, 0, c.days)
}

// Days returns midnight of every festival day.
func (c *Context) Days() []time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	days := make([]time.Time, c.days)
	for i := range days {
		days[i] = c.start.AddDate(0, 0, i)
	}
	return days
}

// DayOf truncates t to midnight in the festival time zone.
func (c *Context) DayOf(t time.Time) time.Time {
	loc := c.Location()
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ParseDay parses YYYY-MM-DD in the festival time zone.
func (c *Context) ParseDay(s string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", s, c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return d, nil
}

// IsFestivalDay reports whether t falls inside the event week.
func (c *Context) IsFestivalDay(t time.Time) bool {
	return !t.Before(c.Start()) && t.Before(c.End())
}

// Now returns the current time in the festival time zone.
func (c *Context) Now() time.Time {
	c.mu.RLock()
	clock := c.clock
	loc := c.loc
	c.mu.RUnlock()
	return clock().In(loc)
}

// SetClock replaces the time source.
func (c *Context) SetClock(clock func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clock
}

// SetYear switches the festival year and resets the calendar to its default dates.
func (c *Context) SetYear(year int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.year = year
	c.start = DefaultStart(year, c.loc)
}
