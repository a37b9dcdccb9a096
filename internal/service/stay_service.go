package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"staybooking/internal/domain"
	"staybooking/internal/events"
	"staybooking/internal/models"

	"github.com/rs/zerolog"
)

// StayInput is what a host submits when listing a stay. The location is derived from Address.
type StayInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Address     string   `json:"address"`
	GuestNumber int      `json:"guest_number"`
	Images      []string `json:"images"`
}

func (in StayInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidStay)
	case strings.TrimSpace(in.Address) == "":
		return fmt.Errorf("%w: address is required", ErrInvalidStay)
	case in.GuestNumber < 1:
		return fmt.Errorf("%w: guest_number must be at least 1", ErrInvalidStay)
	}
	for i, img := range in.Images {
		if strings.TrimSpace(img) == "" {
			return fmt.Errorf("%w: image %d is empty", ErrInvalidStay, i)
		}
	}
	return nil
}

type StayService struct {
	repo       domain.StayRepository
	geocoder   domain.Geocoder
	dispatcher domain.GeoSyncDispatcher
	eventBus   domain.EventPublisher
	now        func() time.Time
	logger     *zerolog.Logger
}

func NewStayService(
	repo domain.StayRepository,
	geocoder domain.Geocoder,
	dispatcher domain.GeoSyncDispatcher,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *StayService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &StayService{
		repo:       repo,
		geocoder:   geocoder,
		dispatcher: dispatcher,
		eventBus:   eventBus,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *StayService) SetClock(now func() time.Time) {
	s.now = now
}

// AddStay geocodes the address and stores the stay together with its geo index task.
// Geocoder errors are returned as is and nothing is written.
func (s *StayService) AddStay(ctx context.Context, hostID string, in StayInput) (*models.Stay, error) {
	if hostID == "" {
		return nil, ErrMissingIdentity
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	location, err := s.geocoder.Geocode(ctx, in.Address)
	if err != nil {
		return nil, err
	}

	stay := &models.Stay{
		HostID:      hostID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Address:     strings.TrimSpace(in.Address),
		GuestNumber: in.GuestNumber,
		Images:      in.Images,
		Location:    location,
	}
	task, err := s.repo.CreateStay(ctx, stay)
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, task)

	s.logger.Info().Int64("stay_id", stay.ID).Str("host_id", hostID).Msg("stay created")
	s.publish(events.EventStayCreated, stay)
	return stay, nil
}

func (s *StayService) ListStays(ctx context.Context, hostID string) ([]models.Stay, error) {
	if hostID == "" {
		return nil, ErrMissingIdentity
	}
	return s.repo.ListStaysByHost(ctx, hostID)
}

func (s *StayService) GetStay(ctx context.Context, hostID string, stayID int64) (*models.Stay, error) {
	if hostID == "" {
		return nil, ErrMissingIdentity
	}
	return s.repo.GetStayByHost(ctx, stayID, hostID)
}

// DeleteStay removes a host's stay unless it still has reservations ending after today.
func (s *StayService) DeleteStay(ctx context.Context, hostID string, stayID int64) error {
	if hostID == "" {
		return ErrMissingIdentity
	}
	task, err := s.repo.DeleteStay(ctx, hostID, stayID, models.Day(s.now()))
	if err != nil {
		return err
	}
	s.dispatch(ctx, task)

	s.logger.Info().Int64("stay_id", stayID).Str("host_id", hostID).Msg("stay deleted")
	s.publish(events.EventStayDeleted, &models.Stay{ID: stayID, HostID: hostID})
	return nil
}

func (s *StayService) dispatch(ctx context.Context, task *models.GeoSyncTask) {
	if s.dispatcher == nil || task == nil {
		return
	}
	s.dispatcher.Dispatch(ctx, task)
}

func (s *StayService) publish(eventType string, stay *models.Stay) {
	if s.eventBus == nil {
		return
	}
	payload := events.StayEventPayload{
		StayID:    stay.ID,
		HostID:    stay.HostID,
		Name:      stay.Name,
		Address:   stay.Address,
		Latitude:  stay.Location.Latitude,
		Longitude: stay.Location.Longitude,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Int64("stay_id", stay.ID).Msg("publish event")
	}
}
