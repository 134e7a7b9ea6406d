package models

import "time"

// Event is an organizer-owned photo collection with a shareable gallery.
type Event struct {
	ID          string     `json:"id"`
	OrganizerID string     `json:"organizer_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type CreateEventRequest struct {
	Title       string     `json:"title" validate:"required,max=120"`
	Description string     `json:"description" validate:"max=2000"`
	Location    string     `json:"location" validate:"max=200"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

type UpdateEventRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=120"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Location    *string    `json:"location,omitempty" validate:"omitempty,max=200"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}
