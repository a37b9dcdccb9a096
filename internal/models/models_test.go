package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestDateRange(t *testing.T) {
	r := NewDateRange(date(t, "2024-03-01"), date(t, "2024-03-05"))

	t.Run("Nights", func(t *testing.T) {
		assert.True(t, r.Valid())
		assert.Equal(t, 4, r.Nights())
		assert.Equal(t, date(t, "2024-03-04"), r.LastNight())
	})

	t.Run("Dates", func(t *testing.T) {
		dates := r.Dates()
		require.Len(t, dates, 4)
		assert.Equal(t, date(t, "2024-03-01"), dates[0])
		assert.Equal(t, date(t, "2024-03-04"), dates[3])
	})

	t.Run("Empty", func(t *testing.T) {
		same := NewDateRange(date(t, "2024-03-01"), date(t, "2024-03-01"))
		assert.False(t, same.Valid())
		assert.Equal(t, 0, same.Nights())
		assert.Empty(t, same.Dates())
	})

	t.Run("Overlaps", func(t *testing.T) {
		touching := NewDateRange(date(t, "2024-03-05"), date(t, "2024-03-07"))
		inside := NewDateRange(date(t, "2024-03-02"), date(t, "2024-03-03"))
		before := NewDateRange(date(t, "2024-02-25"), date(t, "2024-03-02"))

		assert.False(t, r.Overlaps(touching))
		assert.False(t, touching.Overlaps(r))
		assert.True(t, r.Overlaps(inside))
		assert.True(t, r.Overlaps(before))
	})

	t.Run("Day truncates across zones", func(t *testing.T) {
		loc := time.FixedZone("UTC+3", 3*3600)
		tm := time.Date(2024, 3, 1, 1, 30, 0, 0, loc)
		assert.Equal(t, date(t, "2024-03-01"), Day(tm))
	})
}

func TestParseDate(t *testing.T) {
	_, err := ParseDate("2024-13-01")
	assert.Error(t, err)

	d, err := ParseDate(" 2024-03-01 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", d.Format(DateLayout))
}

func TestGeoPointValid(t *testing.T) {
	assert.True(t, GeoPoint{Latitude: 37.77, Longitude: -122.41}.Valid())
	assert.False(t, GeoPoint{Latitude: 91, Longitude: 0}.Valid())
	assert.False(t, GeoPoint{Latitude: 0, Longitude: -181}.Valid())
}
