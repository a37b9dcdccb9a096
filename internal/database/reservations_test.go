package database

import (
	"context"
	"testing"
	"time"

	"staybooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserve(t *testing.T, db *DB, stayID int64, guest, checkin, checkout string) (*models.Reservation, error) {
	t.Helper()
	r := &models.Reservation{
		GuestID:      guest,
		StayID:       stayID,
		CheckinDate:  day(t, checkin),
		CheckoutDate: day(t, checkout),
	}
	return r, db.CreateReservation(context.Background(), r)
}

func TestCreateReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("WritesOneRowPerNight", func(t *testing.T) {
		db := setupTestDB(t)
		stay := createTestStay(t, db, "host", 2)

		r, err := reserve(t, db, stay.ID, "guest-1", "2024-03-01", "2024-03-05")
		require.NoError(t, err)
		assert.NotZero(t, r.ID)

		dates, err := db.ReservedDates(ctx, stay.ID)
		require.NoError(t, err)
		require.Len(t, dates, 4)
		assert.Equal(t, day(t, "2024-03-01"), dates[0])
		assert.Equal(t, day(t, "2024-03-04"), dates[3])

		got, err := db.GetReservation(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, "guest-1", got.GuestID)
		assert.Equal(t, day(t, "2024-03-05"), got.CheckoutDate)
	})

	t.Run("NonOverlappingSucceed", func(t *testing.T) {
		db := setupTestDB(t)
		stay := createTestStay(t, db, "host", 2)

		_, err := reserve(t, db, stay.ID, "a", "2024-03-01", "2024-03-03")
		require.NoError(t, err)
		_, err = reserve(t, db, stay.ID, "b", "2024-03-10", "2024-03-12")
		require.NoError(t, err)

		dates, err := db.ReservedDates(ctx, stay.ID)
		require.NoError(t, err)
		assert.Len(t, dates, 4)
	})

	t.Run("BoundaryTouchIsNotOverlap", func(t *testing.T) {
		db := setupTestDB(t)
		stay := createTestStay(t, db, "host", 2)

		_, err := reserve(t, db, stay.ID, "a", "2024-03-01", "2024-03-05")
		require.NoError(t, err)
		_, err = reserve(t, db, stay.ID, "b", "2024-03-05", "2024-03-07")
		require.NoError(t, err)
		_, err = reserve(t, db, stay.ID, "c", "2024-02-27", "2024-03-01")
		require.NoError(t, err)
	})

	t.Run("OverlapFailsWithoutWrites", func(t *testing.T) {
		db := setupTestDB(t)
		stay := createTestStay(t, db, "host", 2)

		_, err := reserve(t, db, stay.ID, "a", "2024-03-01", "2024-03-05")
		require.NoError(t, err)

		for _, tc := range []struct{ in, out string }{
			{"2024-03-04", "2024-03-06"},
			{"2024-02-28", "2024-03-02"},
			{"2024-03-02", "2024-03-03"},
			{"2024-02-20", "2024-03-20"},
		} {
			_, err := reserve(t, db, stay.ID, "b", tc.in, tc.out)
			assert.ErrorIs(t, err, ErrReservationCollision, "%s..%s", tc.in, tc.out)
		}

		dates, err := db.ReservedDates(ctx, stay.ID)
		require.NoError(t, err)
		assert.Len(t, dates, 4)

		byGuest, err := db.ListReservationsByGuest(ctx, "b")
		require.NoError(t, err)
		assert.Empty(t, byGuest)
	})

	t.Run("OtherStayUnaffected", func(t *testing.T) {
		db := setupTestDB(t)
		s1 := createTestStay(t, db, "host", 2)
		s2 := createTestStay(t, db, "host", 2)

		_, err := reserve(t, db, s1.ID, "a", "2024-03-01", "2024-03-05")
		require.NoError(t, err)
		_, err = reserve(t, db, s2.ID, "a", "2024-03-01", "2024-03-05")
		require.NoError(t, err)
	})

	t.Run("InvalidRange", func(t *testing.T) {
		db := setupTestDB(t)
		stay := createTestStay(t, db, "host", 2)

		_, err := reserve(t, db, stay.ID, "a", "2024-03-05", "2024-03-05")
		assert.ErrorIs(t, err, ErrInvalidDateRange)
		_, err = reserve(t, db, stay.ID, "a", "2024-03-06", "2024-03-05")
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})

	t.Run("UnknownStay", func(t *testing.T) {
		db := setupTestDB(t)
		_, err := reserve(t, db, 42, "a", "2024-03-01", "2024-03-02")
		assert.ErrorIs(t, err, ErrStayNotExist)
	})
}

func TestReservedStayIDs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s1 := createTestStay(t, db, "host", 2)
	s2 := createTestStay(t, db, "host", 2)
	s3 := createTestStay(t, db, "host", 2)

	_, err := reserve(t, db, s1.ID, "a", "2024-03-01", "2024-03-05")
	require.NoError(t, err)
	_, err = reserve(t, db, s2.ID, "a", "2024-03-05", "2024-03-06")
	require.NoError(t, err)

	ids := []int64{s1.ID, s2.ID, s3.ID}

	// [03-03, 03-04] hits only s1
	reserved, err := db.ReservedStayIDs(ctx, ids, day(t, "2024-03-03"), day(t, "2024-03-04"))
	require.NoError(t, err)
	assert.Equal(t, map[int64]struct{}{s1.ID: {}}, reserved)

	// inclusive upper bound
	reserved, err = db.ReservedStayIDs(ctx, ids, day(t, "2024-03-04"), day(t, "2024-03-05"))
	require.NoError(t, err)
	assert.Len(t, reserved, 2)
	assert.NotContains(t, reserved, s3.ID)

	reserved, err = db.ReservedStayIDs(ctx, nil, day(t, "2024-03-01"), day(t, "2024-03-31"))
	require.NoError(t, err)
	assert.Empty(t, reserved)
}

func TestDeleteReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("FreesDatesForRebooking", func(t *testing.T) {
		db := setupTestDB(t)
		stay := createTestStay(t, db, "host", 2)

		r, err := reserve(t, db, stay.ID, "a", "2024-03-01", "2024-03-05")
		require.NoError(t, err)

		deleted, err := db.DeleteReservation(ctx, r.ID, "a")
		require.NoError(t, err)
		assert.Equal(t, stay.ID, deleted.StayID)

		dates, err := db.ReservedDates(ctx, stay.ID)
		require.NoError(t, err)
		assert.Empty(t, dates)

		_, err = reserve(t, db, stay.ID, "b", "2024-03-01", "2024-03-05")
		assert.NoError(t, err)
	})

	t.Run("KeepsNeighbourNights", func(t *testing.T) {
		db := setupTestDB(t)
		stay := createTestStay(t, db, "host", 2)

		r1, err := reserve(t, db, stay.ID, "a", "2024-03-01", "2024-03-03")
		require.NoError(t, err)
		_, err = reserve(t, db, stay.ID, "b", "2024-03-03", "2024-03-05")
		require.NoError(t, err)

		_, err = db.DeleteReservation(ctx, r1.ID, "a")
		require.NoError(t, err)

		dates, err := db.ReservedDates(ctx, stay.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-03-03", "2024-03-04"}, formatDates(dates))
	})

	t.Run("WrongGuestIsNotFound", func(t *testing.T) {
		db := setupTestDB(t)
		stay := createTestStay(t, db, "host", 2)

		r, err := reserve(t, db, stay.ID, "a", "2024-03-01", "2024-03-05")
		require.NoError(t, err)

		_, err = db.DeleteReservation(ctx, r.ID, "intruder")
		assert.ErrorIs(t, err, ErrReservationNotFound)

		_, err = db.DeleteReservation(ctx, 9999, "a")
		assert.ErrorIs(t, err, ErrReservationNotFound)

		dates, err := db.ReservedDates(ctx, stay.ID)
		require.NoError(t, err)
		assert.Len(t, dates, 4)
	})
}

func TestListReservations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s1 := createTestStay(t, db, "host", 2)
	s2 := createTestStay(t, db, "host", 2)

	_, err := reserve(t, db, s1.ID, "a", "2024-03-10", "2024-03-12")
	require.NoError(t, err)
	_, err = reserve(t, db, s2.ID, "a", "2024-03-01", "2024-03-02")
	require.NoError(t, err)
	_, err = reserve(t, db, s1.ID, "b", "2024-03-01", "2024-03-03")
	require.NoError(t, err)

	byGuest, err := db.ListReservationsByGuest(ctx, "a")
	require.NoError(t, err)
	require.Len(t, byGuest, 2)
	assert.Equal(t, s2.ID, byGuest[0].StayID)

	byStay, err := db.ListReservationsByStay(ctx, s1.ID)
	require.NoError(t, err)
	require.Len(t, byStay, 2)
	assert.Equal(t, "b", byStay[0].GuestID)
}

func formatDates(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(models.DateLayout))
	}
	return out
}
