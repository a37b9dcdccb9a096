package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"staybooking/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentReservations(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	stay := createTestStay(t, db, "host", 2)

	// every attempt overlaps every other one on 2024-03-04
	ranges := [][2]string{
		{"2024-03-01", "2024-03-05"},
		{"2024-03-02", "2024-03-06"},
		{"2024-03-03", "2024-03-07"},
		{"2024-03-04", "2024-03-05"},
		{"2024-03-04", "2024-03-08"},
	}

	parsed := make([]models.DateRange, len(ranges))
	for i, rng := range ranges {
		parsed[i] = models.NewDateRange(day(t, rng[0]), day(t, rng[1]))
	}

	const numGoroutines = 20
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	type outcome struct {
		res *models.Reservation
		err error
	}
	results := make(chan outcome, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			rng := parsed[id%len(parsed)]
			r := &models.Reservation{
				GuestID:      fmt.Sprintf("guest-%d", id),
				StayID:       stay.ID,
				CheckinDate:  rng.Checkin,
				CheckoutDate: rng.Checkout,
			}
			results <- outcome{res: r, err: db.CreateReservation(ctx, r)}
		}(i)
	}

	wg.Wait()
	close(results)

	var winner *models.Reservation
	collisions := 0
	for o := range results {
		switch {
		case o.err == nil:
			assert.Nil(t, winner, "more than one reservation succeeded")
			winner = o.res
		case assert.ErrorIs(t, o.err, ErrReservationCollision):
			collisions++
		}
	}

	require.NotNil(t, winner)
	assert.Equal(t, numGoroutines-1, collisions)

	dates, err := db.ReservedDates(ctx, stay.ID)
	require.NoError(t, err)
	assert.Len(t, dates, winner.Range().Nights())
	assert.Equal(t, formatDates(winner.Range().Dates()), formatDates(dates))
}

func TestConcurrentDisjointReservations(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "disjoint.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	stay := createTestStay(t, db, "host", 2)

	const weeks = 8
	var wg sync.WaitGroup
	errs := make(chan error, weeks)
	start := day(t, "2024-01-01")

	for i := 0; i < weeks; i++ {
		wg.Add(1)
		go func(week int) {
			defer wg.Done()
			checkin := start.AddDate(0, 0, 7*week)
			errs <- db.CreateReservation(ctx, &models.Reservation{
				GuestID:      "guest",
				StayID:       stay.ID,
				CheckinDate:  checkin,
				CheckoutDate: checkin.AddDate(0, 0, 7),
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	dates, err := db.ReservedDates(ctx, stay.ID)
	require.NoError(t, err)
	assert.Len(t, dates, weeks*7)
}
