package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybooking/internal/database"
	"staybooking/internal/domain"
	"staybooking/internal/events"
	"staybooking/internal/metrics"
	"staybooking/internal/models"

	"github.com/rs/zerolog"
)

type ReservationService struct {
	repo           domain.ReservationRepository
	stays          domain.StayRepository
	eventBus       domain.EventPublisher
	maxBookingDays int
	now            func() time.Time
	logger         *zerolog.Logger
}

func NewReservationService(
	repo domain.ReservationRepository,
	stays domain.StayRepository,
	eventBus domain.EventPublisher,
	maxBookingDays int,
	logger *zerolog.Logger,
) *ReservationService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReservationService{
		repo:           repo,
		stays:          stays,
		eventBus:       eventBus,
		maxBookingDays: maxBookingDays,
		now:            time.Now,
		logger:         logger,
	}
}

// SetClock replaces the source of "today".
func (s *ReservationService) SetClock(now func() time.Time) {
	s.now = now
}

// ValidateReservationDates checks ordering and the booking horizon.
func (s *ReservationService) ValidateReservationDates(r models.DateRange) error {
	if !r.Valid() {
		return fmt.Errorf("%w: checkin %s must be before checkout %s", ErrInvalidReservationDate,
			r.Checkin.Format(models.DateLayout), r.Checkout.Format(models.DateLayout))
	}

	today := models.Day(s.now())
	// Заезд в прошлом запрещён
	if r.Checkin.Before(today) {
		return fmt.Errorf("%w: checkin %s is in the past", ErrInvalidReservationDate, r.Checkin.Format(models.DateLayout))
	}

	maxDate := today.AddDate(0, 0, s.maxBookingDays)
	if r.Checkout.After(maxDate) {
		return fmt.Errorf("%w: checkout %s is more than %d days ahead", ErrInvalidReservationDate,
			r.Checkout.Format(models.DateLayout), s.maxBookingDays)
	}
	return nil
}

// CreateReservation books stayID for the guest over [checkin, checkout).
func (s *ReservationService) CreateReservation(ctx context.Context, guestID string, stayID int64, dates models.DateRange) (*models.Reservation, error) {
	if guestID == "" {
		return nil, ErrMissingIdentity
	}
	dates = models.NewDateRange(dates.Checkin, dates.Checkout)
	if err := s.ValidateReservationDates(dates); err != nil {
		return nil, err
	}

	r := &models.Reservation{
		GuestID:      guestID,
		StayID:       stayID,
		CheckinDate:  dates.Checkin,
		CheckoutDate: dates.Checkout,
	}
	if err := s.repo.CreateReservation(ctx, r); err != nil {
		if errors.Is(err, database.ErrReservationCollision) {
			metrics.IncReservation(metrics.ReservationCollision)
			s.logger.Info().Int64("stay_id", stayID).Str("guest_id", guestID).Str("dates", dates.String()).Msg("reservation collision")
		}
		return nil, err
	}

	metrics.IncReservation(metrics.ReservationCreated)
	s.logger.Info().Int64("reservation_id", r.ID).Int64("stay_id", stayID).Str("dates", dates.String()).Msg("reservation created")
	s.publish(events.EventReservationCreated, r)
	return r, nil
}

// CancelReservation removes a guest's reservation and frees its nights.
func (s *ReservationService) CancelReservation(ctx context.Context, guestID string, reservationID int64) error {
	if guestID == "" {
		return ErrMissingIdentity
	}
	r, err := s.repo.DeleteReservation(ctx, reservationID, guestID)
	if err != nil {
		return err
	}

	metrics.IncReservation(metrics.ReservationCanceled)
	s.logger.Info().Int64("reservation_id", r.ID).Int64("stay_id", r.StayID).Msg("reservation canceled")
	s.publish(events.EventReservationCanceled, r)
	return nil
}

func (s *ReservationService) ListReservationsByGuest(ctx context.Context, guestID string) ([]models.Reservation, error) {
	if guestID == "" {
		return nil, ErrMissingIdentity
	}
	return s.repo.ListReservationsByGuest(ctx, guestID)
}

// ListReservationsByStay returns the stay and its reservations if the stay belongs to hostID.
func (s *ReservationService) ListReservationsByStay(ctx context.Context, hostID string, stayID int64) (*models.Stay, []models.Reservation, error) {
	if hostID == "" {
		return nil, nil, ErrMissingIdentity
	}
	stay, err := s.stays.GetStayByHost(ctx, stayID, hostID)
	if err != nil {
		return nil, nil, err
	}
	reservations, err := s.repo.ListReservationsByStay(ctx, stay.ID)
	if err != nil {
		return nil, nil, err
	}
	return stay, reservations, nil
}

// GetReservation returns one of the guest's reservations. Someone else's
// reservation is reported as not found.
func (s *ReservationService) GetReservation(ctx context.Context, guestID string, reservationID int64) (*models.Reservation, error) {
	if guestID == "" {
		return nil, ErrMissingIdentity
	}
	r, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.GuestID != guestID {
		return nil, database.ErrReservationNotFound
	}
	return r, nil
}

// ReservedDates returns the occupied nights of a host's stay, ascending.
func (s *ReservationService) ReservedDates(ctx context.Context, hostID string, stayID int64) ([]time.Time, error) {
	if hostID == "" {
		return nil, ErrMissingIdentity
	}
	stay, err := s.stays.GetStayByHost(ctx, stayID, hostID)
	if err != nil {
		return nil, err
	}
	return s.repo.ReservedDates(ctx, stay.ID)
}

func (s *ReservationService) publish(eventType string, r *models.Reservation) {
	if s.eventBus == nil {
		return
	}
	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		StayID:        r.StayID,
		GuestID:       r.GuestID,
		CheckinDate:   r.CheckinDate.Format(models.DateLayout),
		CheckoutDate:  r.CheckoutDate.Format(models.DateLayout),
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Int64("reservation_id", r.ID).Msg("publish event")
	}
}
