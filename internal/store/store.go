package store

import (
	"context"
	"errors"
	"time"

	"barqpix-backend/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Store is the persistence boundary for all BarqPix records. Every mutation
// the system relies on (scan-count increment, token+session creation, cascade
// deletes) is a single atomic call; callers never compose multi-step writes.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Events
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEventsByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error)
	UpdateEvent(ctx context.Context, e *models.Event) error
	// DeleteEvent removes the event, its photos and its tokens in one shot.
	DeleteEvent(ctx context.Context, id string) error

	// QR tokens
	CreateToken(ctx context.Context, t *models.QRToken) error
	// CreateQuickShare persists the token and its session container atomically.
	CreateQuickShare(ctx context.Context, t *models.QRToken, s *models.QuickSession) error
	// GetToken resolves by token id or, for quick-share, by quick id.
	GetToken(ctx context.Context, tokenOrQuickID string) (*models.QRToken, error)
	DeleteToken(ctx context.Context, tokenID string) error
	// IncrementScanCount atomically bumps scan_count, appends the scan log
	// entry, and returns the updated token. Concurrent calls never lose
	// increments.
	IncrementScanCount(ctx context.Context, tokenID string, entry models.ScanLog) (*models.QRToken, error)

	// Quick-share sessions
	GetQuickSession(ctx context.Context, quickID string) (*models.QuickSession, error)
	// ExpiredQuickSessions returns sessions whose token expired before now.
	ExpiredQuickSessions(ctx context.Context, now time.Time) ([]models.QuickSession, error)
	// DeleteQuickShare removes the session's photo rows, the session
	// container and its token together.
	DeleteQuickShare(ctx context.Context, quickID string) error

	// Photos
	InsertPhoto(ctx context.Context, p *models.Photo) error
	GetPhoto(ctx context.Context, id string) (*models.Photo, error)
	DeletePhoto(ctx context.Context, id string) error
	ListQuickPhotos(ctx context.Context, quickID string, limit, offset int) (*models.PhotoPage, error)
	ListEventPhotos(ctx context.Context, eventID string, limit, offset int) (*models.PhotoPage, error)
	// SessionPhotos returns every photo in a quick session, for cascades.
	SessionPhotos(ctx context.Context, quickID string) ([]models.Photo, error)
	EventPhotos(ctx context.Context, eventID string) ([]models.Photo, error)
	CountQuickPhotos(ctx context.Context, quickID string) (int, error)
	// QuickPhotosOlderThan returns quick-share photos uploaded before cutoff,
	// regardless of session state.
	QuickPhotosOlderThan(ctx context.Context, cutoff time.Time) ([]models.Photo, error)
}
