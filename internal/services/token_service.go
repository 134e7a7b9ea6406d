package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"barqpix-backend/internal/blob"
	"barqpix-backend/internal/models"
	"barqpix-backend/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// TokenService is the QR token store and scan tracker: it creates tokens,
// resolves them by token or quick id, and records scans with expiry enforced
// at the access boundary.
type TokenService struct {
	store    store.Store
	blobs    blob.Store
	validate *validator.Validate
	baseURL  string
}

func NewTokenService(s store.Store, blobs blob.Store, baseURL string) *TokenService {
	return &TokenService{
		store:    s,
		blobs:    blobs,
		validate: validator.New(),
		baseURL:  baseURL,
	}
}

// CreateQuickShare creates a quick-share token together with its session
// container. createdBy is nil for anonymous (guest) creators.
func (s *TokenService) CreateQuickShare(ctx context.Context, req models.CreateQuickTokenRequest, createdBy *string) (*models.CreateTokenResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(req.ExpiresIn * float64(time.Hour)))
	quickID := uuid.New().String()

	token := &models.QRToken{
		ID:         uuid.New().String(),
		TargetType: models.TargetQuick,
		QuickID:    &quickID,
		Title:      req.Title,
		CreatedAt:  now,
		ExpiresAt:  &expiresAt,
	}
	session := &models.QuickSession{
		QuickID:   quickID,
		TokenID:   token.ID,
		CreatedBy: createdBy,
		CreatedAt: now,
	}

	if err := s.store.CreateQuickShare(ctx, token, session); err != nil {
		return nil, mapStoreErr(err)
	}
	return s.tokenResponse(token, quickID)
}

// CreateEventToken creates a long-lived token for an event the organizer owns.
func (s *TokenService) CreateEventToken(ctx context.Context, organizerID string, req models.CreateEventTokenRequest) (*models.CreateTokenResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if event.OrganizerID != organizerID {
		return nil, ErrForbidden
	}

	title := req.Title
	if title == "" {
		title = event.Title
	}

	token := &models.QRToken{
		ID:         uuid.New().String(),
		TargetType: models.TargetEvent,
		TargetID:   &event.ID,
		Title:      title,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		return nil, mapStoreErr(err)
	}
	return s.tokenResponse(token, event.ID)
}

func (s *TokenService) tokenResponse(token *models.QRToken, scanTarget string) (*models.CreateTokenResponse, error) {
	url := fmt.Sprintf("%s/scan/%s", s.baseURL, scanTarget)
	png, err := qrcode.Encode(url, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return &models.CreateTokenResponse{
		Token:  token,
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		URL:    url,
	}, nil
}

// Resolve looks up a token by its id or by a quick-share id. An expired token
// does not resolve: like scan tracking, it is gone the moment expiresAt passes,
// whether or not the sweeper has reclaimed it.
func (s *TokenService) Resolve(ctx context.Context, tokenOrQuickID string) (*models.QRToken, error) {
	token, err := s.store.GetToken(ctx, tokenOrQuickID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if token.Expired(time.Now().UTC()) {
		return nil, ErrExpired
	}
	return token, nil
}

// TrackScan records one access to a token. The expiry check happens here,
// before any write, so an expired token is unusable even if the sweeper has
// not reclaimed it yet. The increment itself is a single atomic store call.
func (s *TokenService) TrackScan(ctx context.Context, tokenOrQuickID string, req models.ScanRequest) (*models.QRToken, error) {
	token, err := s.store.GetToken(ctx, tokenOrQuickID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	now := time.Now().UTC()
	if token.Expired(now) {
		return nil, ErrExpired
	}

	updated, err := s.store.IncrementScanCount(ctx, token.ID, models.ScanLog{
		ScannerID:   req.ScannerID,
		ScannerName: req.ScannerName,
		ScannedAt:   now,
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return updated, nil
}

// Delete removes a token the organizer owns. A quick-share token never
// outlives its session: deleting it takes the session container and its
// photos along.
func (s *TokenService) Delete(ctx context.Context, organizerID, tokenOrQuickID string) error {
	token, err := s.store.GetToken(ctx, tokenOrQuickID)
	if err != nil {
		return mapStoreErr(err)
	}

	switch token.TargetType {
	case models.TargetQuick:
		session, err := s.store.GetQuickSession(ctx, *token.QuickID)
		if err != nil {
			return mapStoreErr(err)
		}
		if session.CreatedBy == nil || *session.CreatedBy != organizerID {
			return ErrForbidden
		}
		photos, err := s.store.SessionPhotos(ctx, *token.QuickID)
		if err != nil {
			return mapStoreErr(err)
		}
		for i := range photos {
			removePhotoBlobs(s.blobs, &photos[i])
		}
		return mapStoreErr(s.store.DeleteQuickShare(ctx, *token.QuickID))
	case models.TargetEvent:
		event, err := s.store.GetEvent(ctx, *token.TargetID)
		if err != nil {
			return mapStoreErr(err)
		}
		if event.OrganizerID != organizerID {
			return ErrForbidden
		}
		return mapStoreErr(s.store.DeleteToken(ctx, token.ID))
	default:
		return ErrNotFound
	}
}
