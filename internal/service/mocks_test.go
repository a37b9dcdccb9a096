package service

import (
	"context"
	"time"

	"staybooking/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockStayRepo struct {
	mock.Mock
}

func (m *mockStayRepo) CreateStay(ctx context.Context, stay *models.Stay) (*models.GeoSyncTask, error) {
	args := m.Called(ctx, stay)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GeoSyncTask), args.Error(1)
}

func (m *mockStayRepo) GetStayByHost(ctx context.Context, id int64, hostID string) (*models.Stay, error) {
	args := m.Called(ctx, id, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stay), args.Error(1)
}

func (m *mockStayRepo) ListStaysByHost(ctx context.Context, hostID string) ([]models.Stay, error) {
	args := m.Called(ctx, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Stay), args.Error(1)
}

func (m *mockStayRepo) FindStaysByIDsAndCapacity(ctx context.Context, ids []int64, guests int) ([]models.Stay, error) {
	args := m.Called(ctx, ids, guests)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Stay), args.Error(1)
}

func (m *mockStayRepo) DeleteStay(ctx context.Context, hostID string, stayID int64, today time.Time) (*models.GeoSyncTask, error) {
	args := m.Called(ctx, hostID, stayID, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GeoSyncTask), args.Error(1)
}

type mockReservationRepo struct {
	mock.Mock
}

func (m *mockReservationRepo) CreateReservation(ctx context.Context, r *models.Reservation) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockReservationRepo) DeleteReservation(ctx context.Context, id int64, guestID string) (*models.Reservation, error) {
	args := m.Called(ctx, id, guestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockReservationRepo) ListReservationsByGuest(ctx context.Context, guestID string) ([]models.Reservation, error) {
	args := m.Called(ctx, guestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockReservationRepo) ListReservationsByStay(ctx context.Context, stayID int64) ([]models.Reservation, error) {
	args := m.Called(ctx, stayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockReservationRepo) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockReservationRepo) ReservedDates(ctx context.Context, stayID int64) ([]time.Time, error) {
	args := m.Called(ctx, stayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) ReservedStayIDs(ctx context.Context, ids []int64, from, to time.Time) (map[int64]struct{}, error) {
	args := m.Called(ctx, ids, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]struct{}), args.Error(1)
}

type mockGeoIndex struct {
	mock.Mock
}

func (m *mockGeoIndex) Index(ctx context.Context, stayID int64, p models.GeoPoint) error {
	return m.Called(ctx, stayID, p).Error(0)
}

func (m *mockGeoIndex) Remove(ctx context.Context, stayID int64) error {
	return m.Called(ctx, stayID).Error(0)
}

func (m *mockGeoIndex) QueryRadius(ctx context.Context, center models.GeoPoint, radiusKm float64) ([]int64, error) {
	args := m.Called(ctx, center, radiusKm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (models.GeoPoint, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(models.GeoPoint), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, task *models.GeoSyncTask) {
	m.Called(ctx, task)
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}
