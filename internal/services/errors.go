package services

import (
	"errors"
	"fmt"

	"barqpix-backend/internal/store"
)

// Service-level error taxonomy. Handlers map these to HTTP statuses.
var (
	ErrValidation         = errors.New("invalid request")
	ErrNotFound           = errors.New("not found")
	ErrExpired            = errors.New("expired")
	ErrForbidden          = errors.New("forbidden")
	ErrStorage            = errors.New("storage failure")
	ErrUserExists         = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// mapStoreErr translates store errors into the service taxonomy, keeping the
// underlying cause in the message.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrConflict):
		return ErrUserExists
	default:
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
