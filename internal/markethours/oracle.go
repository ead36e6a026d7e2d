// Package markethours decides whether an instrument's home market is open
// and computes session-opening instants in UTC. Sessions are defined as
// wall-clock bounds in the exchange timezone; conversion to UTC is done by
// converging projection so daylight-saving shifts never skew an opening
// instant.
package markethours

import (
	"fmt"
	"time"

	"github.com/verivolabs/verivo-engine/internal/domain"
)

// Status is the result of a market-open check.
type Status struct {
	IsOpen  bool
	Message string
}

// Oracle answers market-hours questions from the static session table. The
// zero value is not usable; construct with New.
type Oracle struct {
	locations map[string]*time.Location
}

// New builds an Oracle, resolving every timezone in the session table once.
// Unresolvable zones fall back to UTC rather than failing startup.
func New() *Oracle {
	o := &Oracle{locations: make(map[string]*time.Location)}
	seed := func(s Session) {
		if _, ok := o.locations[s.Timezone]; ok {
			return
		}
		loc, err := time.LoadLocation(s.Timezone)
		if err != nil {
			loc = time.UTC
		}
		o.locations[s.Timezone] = loc
	}
	for _, s := range sessions {
		seed(s)
	}
	seed(usSession)
	seed(londonSession)
	return o
}

func (o *Oracle) location(tz string) *time.Location {
	if loc, ok := o.locations[tz]; ok {
		return loc
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	o.locations[tz] = loc
	return loc
}

// IsOpen reports whether the symbol's home market is open right now.
func (o *Oracle) IsOpen(symbol string) Status {
	return o.IsOpenAt(symbol, time.Now())
}

// IsOpenAt is IsOpen with an injected clock.
func (o *Oracle) IsOpenAt(symbol string, now time.Time) Status {
	s := sessionFor(symbol)
	local := now.In(o.location(s.Timezone))

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Status{Message: fmt.Sprintf("market closed: %s is not a trading day", wd)}
	}

	mins := local.Hour()*60 + local.Minute()
	open := s.OpenHour*60 + s.OpenMinute
	close := s.CloseHour*60 + s.CloseMinute
	if mins < open || mins >= close {
		return Status{Message: fmt.Sprintf(
			"market closed: trading hours are %02d:%02d-%02d:%02d %s",
			s.OpenHour, s.OpenMinute, s.CloseHour, s.CloseMinute, s.Timezone,
		)}
	}
	return Status{IsOpen: true}
}

// NextOpen returns the UTC instant of the next session open for the symbol,
// strictly after now. It searches forward up to seven calendar days,
// skipping weekends.
func (o *Oracle) NextOpen(symbol string, now time.Time) (time.Time, error) {
	s := sessionFor(symbol)
	loc := o.location(s.Timezone)
	local := now.In(loc)

	for i := 0; i <= 7; i++ {
		day := local.AddDate(0, 0, i)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		open := o.instantFor(loc, day.Year(), day.Month(), day.Day(), s.OpenHour, s.OpenMinute)
		if open.After(now) {
			return open, nil
		}
	}
	return time.Time{}, fmt.Errorf("markethours: no session open within 7 days for %q", symbol)
}

// LondonOpenReference returns the next 08:00 Europe/London instant for a
// forex opening prediction. Submissions after the opening wall-clock time on
// a trading day are rejected: that session's opening price can no longer be
// captured forward-looking.
func (o *Oracle) LondonOpenReference(now time.Time) (time.Time, error) {
	return o.openingReference(now, o.location("Europe/London"), 8, 0)
}

// USOpenReference returns the next 09:30 America/New_York instant, with the
// same cutoff rule, for commodities and US equity opening predictions.
func (o *Oracle) USOpenReference(now time.Time) (time.Time, error) {
	return o.openingReference(now, o.location("America/New_York"), 9, 30)
}

func (o *Oracle) openingReference(now time.Time, loc *time.Location, hour, minute int) (time.Time, error) {
	local := now.In(loc)

	// Weekends roll forward to the next trading day's open.
	for wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday; wd = local.Weekday() {
		local = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	}

	open := o.instantFor(loc, local.Year(), local.Month(), local.Day(), hour, minute)
	if !now.Before(open) {
		return time.Time{}, fmt.Errorf("markethours: %02d:%02d %s open already passed: %w",
			hour, minute, loc, domain.ErrCutoffPassed)
	}
	return open, nil
}

// instantFor resolves the UTC instant whose wall clock in loc reads the
// given date and time. It starts from the naive UTC guess and converges by
// re-projecting into loc, measuring the signed minute delta to the desired
// wall-clock time (normalized into [-720,720) so day-boundary wraparound
// cancels), and shifting the guess. Stable within three iterations.
func (o *Oracle) instantFor(loc *time.Location, year int, month time.Month, day, hour, minute int) time.Time {
	want := hour*60 + minute
	guess := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		local := guess.In(loc)
		delta := local.Hour()*60 + local.Minute() - want
		delta = ((delta%1440)+1440+720)%1440 - 720
		if delta == 0 {
			break
		}
		guess = guess.Add(-time.Duration(delta) * time.Minute)
	}
	return guess
}
