package services

import (
	"context"
	"time"

	"barqpix-backend/internal/blob"
	"barqpix-backend/internal/models"
	"barqpix-backend/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type EventService struct {
	store    store.Store
	blobs    blob.Store
	validate *validator.Validate
}

func NewEventService(s store.Store, blobs blob.Store) *EventService {
	return &EventService{store: s, blobs: blobs, validate: validator.New()}
}

func (s *EventService) Create(ctx context.Context, organizerID string, req models.CreateEventRequest) (*models.Event, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}

	event := &models.Event{
		ID:          uuid.New().String(),
		OrganizerID: organizerID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, mapStoreErr(err)
	}
	return event, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return event, nil
}

func (s *EventService) ListMine(ctx context.Context, organizerID string) ([]models.Event, error) {
	events, err := s.store.ListEventsByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if events == nil {
		events = []models.Event{}
	}
	return events, nil
}

func (s *EventService) Update(ctx context.Context, organizerID, id string, req models.UpdateEventRequest) (*models.Event, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}

	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if event.OrganizerID != organizerID {
		return nil, ErrForbidden
	}

	if req.Title != nil {
		event.Title = *req.Title
	}
	if req.Description != nil {
		event.Description = *req.Description
	}
	if req.Location != nil {
		event.Location = *req.Location
	}
	if req.StartsAt != nil {
		event.StartsAt = req.StartsAt
	}
	if req.EndsAt != nil {
		event.EndsAt = req.EndsAt
	}

	if err := s.store.UpdateEvent(ctx, event); err != nil {
		return nil, mapStoreErr(err)
	}
	return event, nil
}

// Delete removes an event with its photos (blobs included) and tokens.
func (s *EventService) Delete(ctx context.Context, organizerID, id string) error {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	if event.OrganizerID != organizerID {
		return ErrForbidden
	}

	photos, err := s.store.EventPhotos(ctx, id)
	if err != nil {
		return mapStoreErr(err)
	}
	for i := range photos {
		removePhotoBlobs(s.blobs, &photos[i])
	}
	return mapStoreErr(s.store.DeleteEvent(ctx, id))
}
