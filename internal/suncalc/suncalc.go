// internal/suncalc/suncalc.go

// Package suncalc computes sun event times for the recording site and the
// dawn window used to select recordings in sunrise mode.
package suncalc

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sj14/astral/pkg/astral"
)

// SunEventTimes holds the sun event times of one day in the configured zone.
type SunEventTimes struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

// SunCalc calculates sun event times and caches them per calendar date.
// It is safe for concurrent use.
type SunCalc struct {
	cache    *cache.Cache
	observer astral.Observer
	location *time.Location
}

// NewSunCalc creates a SunCalc for the given site. Event times are reported
// in loc, UTC when nil.
func NewSunCalc(latitude, longitude float64, loc *time.Location) *SunCalc {
	if loc == nil {
		loc = time.UTC
	}
	return &SunCalc{
		// Entries never expire; a zero cleanup interval starts no janitor.
		cache:    cache.New(cache.NoExpiration, 0),
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		location: loc,
	}
}

// Location returns the zone event times are reported in.
func (sc *SunCalc) Location() *time.Location {
	return sc.location
}

// GetSunEventTimes returns the sun event times for the calendar date of date.
func (sc *SunCalc) GetSunEventTimes(date time.Time) (SunEventTimes, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, sc.location)
	key := day.Format(time.DateOnly)

	if cached, found := sc.cache.Get(key); found {
		if times, ok := cached.(SunEventTimes); ok {
			return times, nil
		}
	}

	times, err := sc.calculateSunEventTimes(day)
	if err != nil {
		return SunEventTimes{}, err
	}
	sc.cache.Set(key, times, cache.DefaultExpiration)
	return times, nil
}

func (sc *SunCalc) calculateSunEventTimes(date time.Time) (SunEventTimes, error) {
	civilDawn, err := astral.Dawn(sc.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}

	sunrise, err := astral.Sunrise(sc.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}

	sunset, err := astral.Sunset(sc.observer, date)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}

	civilDusk, err := astral.Dusk(sc.observer, date, astral.DepressionCivil)
	if err != nil {
		return SunEventTimes{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}

	return SunEventTimes{
		CivilDawn: civilDawn.In(sc.location),
		Sunrise:   sunrise.In(sc.location),
		Sunset:    sunset.In(sc.location),
		CivilDusk: civilDusk.In(sc.location),
	}, nil
}

// GetSunriseTime returns the sunrise time for a given date
func (sc *SunCalc) GetSunriseTime(date time.Time) (time.Time, error) {
	sunEventTimes, err := sc.GetSunEventTimes(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get sun event times: %w", err)
	}
	return sunEventTimes.Sunrise, nil
}

// InDawnWindow reports whether t lies within [sunrise-before, sunrise+after]
// on its own calendar date. Recording clocks should be parsed in Location().
func (sc *SunCalc) InDawnWindow(t time.Time, before, after time.Duration) (bool, error) {
	sunrise, err := sc.GetSunriseTime(t)
	if err != nil {
		return false, err
	}
	return !t.Before(sunrise.Add(-before)) && !t.After(sunrise.Add(after)), nil
}
