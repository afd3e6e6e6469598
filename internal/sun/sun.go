package sun

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// civil twilight
const DAWN_DUSK_ELEVATION = -6.0

type Location struct {
	Latitude  float64
	Longitude float64
	TimeZone  *time.Location
}

type elevationFunc func(latitude, longitude, elevation float64, year int, month time.Month, day int) (time.Time, time.Time)

// Cache memoizes dawn and dusk for the current local date. It is owned by a single goroutine.
type Cache struct {
	location Location
	compute  elevationFunc

	year  int
	month time.Month
	day   int
	dawn  time.Time
	dusk  time.Time
	valid bool
}

func NewCache(location Location) *Cache {
	if location.TimeZone == nil {
		location.TimeZone = time.Local
	}
	return &Cache{
		location: location,
		compute:  sunrise.TimeOfElevation,
	}
}

// DawnDusk returns civil dawn and dusk of the local date of now. When the sun does not cross
// the twilight elevation that day, the whole day is returned.
func (c *Cache) DawnDusk(now time.Time) (time.Time, time.Time) {
	local := now.In(c.location.TimeZone)
	year, month, day := local.Date()
	if c.valid && year == c.year && month == c.month && day == c.day {
		return c.dawn, c.dusk
	}

	dawn, dusk := c.compute(c.location.Latitude, c.location.Longitude, DAWN_DUSK_ELEVATION, year, month, day)
	midnight := time.Date(year, month, day, 0, 0, 0, 0, c.location.TimeZone)
	if !plausible(midnight, dawn, dusk) {
		dawn, dusk = midnight, midnight.AddDate(0, 0, 1)
	}

	c.year, c.month, c.day = year, month, day
	c.dawn, c.dusk = dawn.In(c.location.TimeZone), dusk.In(c.location.TimeZone)
	c.valid = true
	return c.dawn, c.dusk
}

// IsDaylight reports dawn < now < dusk.
func (c *Cache) IsDaylight(now time.Time) bool {
	dawn, dusk := c.DawnDusk(now)
	return now.After(dawn) && now.Before(dusk)
}

// the hour angle is undefined on polar days and nights, the times are then zero or garbage
func plausible(midnight, dawn, dusk time.Time) bool {
	if dawn.IsZero() || dusk.IsZero() || !dawn.Before(dusk) {
		return false
	}
	from, to := midnight.Add(-12*time.Hour), midnight.Add(36*time.Hour)
	return dawn.After(from) && dusk.Before(to)
}
