package suncalc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wytham Woods, Oxford
const (
	testLatitude  = 51.775036
	testLongitude = -1.336488
)

func newTestSunCalc(t *testing.T) *SunCalc {
	t.Helper()
	return NewSunCalc(testLatitude, testLongitude, time.UTC)
}

func TestNewSunCalc(t *testing.T) {
	t.Parallel()

	sc := NewSunCalc(testLatitude, testLongitude, nil)
	require.NotNil(t, sc)
	assert.InDelta(t, testLatitude, sc.observer.Latitude, 1e-9)
	assert.InDelta(t, testLongitude, sc.observer.Longitude, 1e-9)
	assert.Equal(t, time.UTC, sc.Location(), "nil location defaults to UTC")
}

func TestGetSunEventTimesOrder(t *testing.T) {
	t.Parallel()

	sc := newTestSunCalc(t)
	times, err := sc.GetSunEventTimes(time.Date(2020, 4, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, times.CivilDawn.Before(times.Sunrise))
	assert.True(t, times.Sunrise.Before(times.Sunset))
	assert.True(t, times.Sunset.Before(times.CivilDusk))

	// Early April sunrise in Oxford is shortly after 05:00 UTC.
	lower := time.Date(2020, 4, 10, 5, 0, 0, 0, time.UTC)
	upper := time.Date(2020, 4, 10, 5, 45, 0, 0, time.UTC)
	assert.True(t, times.Sunrise.After(lower) && times.Sunrise.Before(upper), "sunrise %s", times.Sunrise)
}

func TestGetSunEventTimesCachesPerDate(t *testing.T) {
	t.Parallel()

	sc := newTestSunCalc(t)
	morning := time.Date(2020, 4, 10, 3, 0, 0, 0, time.UTC)
	evening := time.Date(2020, 4, 10, 22, 0, 0, 0, time.UTC)

	first, err := sc.GetSunEventTimes(morning)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.cache.ItemCount())

	second, err := sc.GetSunEventTimes(evening)
	require.NoError(t, err)
	assert.Equal(t, 1, sc.cache.ItemCount(), "same calendar date shares one entry")
	assert.True(t, first.Sunrise.Equal(second.Sunrise))

	_, err = sc.GetSunEventTimes(morning.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, sc.cache.ItemCount())
}

func TestEventTimesUseLocation(t *testing.T) {
	t.Parallel()

	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skip("tzdata not available")
	}

	utc := newTestSunCalc(t)
	local := NewSunCalc(testLatitude, testLongitude, london)
	date := time.Date(2020, 4, 10, 0, 0, 0, 0, time.UTC)

	a, err := utc.GetSunriseTime(date)
	require.NoError(t, err)
	b, err := local.GetSunriseTime(date.In(london))
	require.NoError(t, err)

	assert.True(t, a.Equal(b), "same instant in both zones")
	assert.Equal(t, london, b.Location())
}

func TestInDawnWindow(t *testing.T) {
	t.Parallel()

	sc := newTestSunCalc(t)
	sunrise, err := sc.GetSunriseTime(time.Date(2020, 4, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "at sunrise", at: sunrise, want: true},
		{name: "lower bound inclusive", at: sunrise.Add(-time.Hour), want: true},
		{name: "upper bound inclusive", at: sunrise.Add(2 * time.Hour), want: true},
		{name: "too early", at: sunrise.Add(-time.Hour - time.Second), want: false},
		{name: "too late", at: sunrise.Add(2*time.Hour + time.Second), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := sc.InDawnWindow(tt.at, time.Hour, 2*time.Hour)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
