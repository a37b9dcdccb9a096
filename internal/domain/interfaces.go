package domain

import (
	"context"
	"time"

	"staybooking/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// StayRepository is the relational stay lookup store.
type StayRepository interface {
	CreateStay(ctx context.Context, stay *models.Stay) (*models.GeoSyncTask, error)
	GetStayByHost(ctx context.Context, id int64, hostID string) (*models.Stay, error)
	ListStaysByHost(ctx context.Context, hostID string) ([]models.Stay, error)
	FindStaysByIDsAndCapacity(ctx context.Context, ids []int64, guests int) ([]models.Stay, error)
	DeleteStay(ctx context.Context, hostID string, stayID int64, today time.Time) (*models.GeoSyncTask, error)
}

// ReservationRepository owns reservations and their per-day occupancy rows.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, id int64, guestID string) (*models.Reservation, error)
	ListReservationsByGuest(ctx context.Context, guestID string) ([]models.Reservation, error)
	ListReservationsByStay(ctx context.Context, stayID int64) ([]models.Reservation, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ReservedDates(ctx context.Context, stayID int64) ([]time.Time, error)
}

// CollisionChecker answers which of the given stays have an occupied day in [from, to].
type CollisionChecker interface {
	ReservedStayIDs(ctx context.Context, stayIDs []int64, from, to time.Time) (map[int64]struct{}, error)
}

// GeoIndex maps stay ids to coordinates and answers radius queries, nearest first.
type GeoIndex interface {
	Index(ctx context.Context, stayID int64, point models.GeoPoint) error
	Remove(ctx context.Context, stayID int64) error
	QueryRadius(ctx context.Context, center models.GeoPoint, radiusKm float64) ([]int64, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.GeoPoint, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// GeoSyncDispatcher applies an already persisted outbox task to the geo index.
type GeoSyncDispatcher interface {
	Dispatch(ctx context.Context, task *models.GeoSyncTask)
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
