package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"barqpix-backend/internal/blob"
	"barqpix-backend/internal/models"
	"barqpix-backend/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

// Publisher fans a gallery update out to currently-connected viewers of a
// target. Implementations are best-effort; Publish never reports failure back
// to the caller.
type Publisher interface {
	Publish(targetID string, message interface{})
}

// PhotoUpload is one file from a multipart upload request.
type PhotoUpload struct {
	Filename string
	Data     []byte
	Caption  string
	Tags     []string
}

// PhotoService appends, lists and deletes photos for quick-share sessions and
// events, and fires gallery updates after successful appends.
type PhotoService struct {
	store     store.Store
	blobs     blob.Store
	publisher Publisher
	baseURL   string
}

func NewPhotoService(s store.Store, blobs blob.Store, publisher Publisher, baseURL string) *PhotoService {
	return &PhotoService{store: s, blobs: blobs, publisher: publisher, baseURL: baseURL}
}

// AppendQuickPhotos adds photos to an Active quick-share session. The expiry
// check is identical to scan tracking: at or past expiresAt the session is
// semantically gone even if the sweeper has not run.
func (s *PhotoService) AppendQuickPhotos(ctx context.Context, quickID string, uploads []PhotoUpload, uploadedBy string, uploaderID *string) ([]models.Photo, error) {
	token, err := s.store.GetToken(ctx, quickID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if token.Expired(time.Now().UTC()) {
		return nil, ErrExpired
	}
	if token.QuickID == nil {
		return nil, ErrNotFound
	}
	return s.appendPhotos(ctx, uploads, uploadedBy, uploaderID, func(p *models.Photo) {
		p.QuickID = token.QuickID
	}, *token.QuickID)
}

// AppendEventPhotos adds photos to an event gallery. Event galleries do not
// expire.
func (s *PhotoService) AppendEventPhotos(ctx context.Context, eventID string, uploads []PhotoUpload, uploadedBy string, uploaderID *string) ([]models.Photo, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return s.appendPhotos(ctx, uploads, uploadedBy, uploaderID, func(p *models.Photo) {
		p.EventID = &event.ID
	}, event.ID)
}

func (s *PhotoService) appendPhotos(ctx context.Context, uploads []PhotoUpload, uploadedBy string, uploaderID *string, assign func(*models.Photo), targetID string) ([]models.Photo, error) {
	if len(uploads) == 0 {
		return nil, validationErr(fmt.Errorf("no photos in request"))
	}
	if uploadedBy == "" {
		uploadedBy = "anonymous"
	}

	photos := make([]models.Photo, 0, len(uploads))
	for _, up := range uploads {
		photo, err := s.savePhoto(ctx, up, uploadedBy, uploaderID, assign)
		if err != nil {
			// A failed request persists nothing: undo the photos already
			// saved for this batch before reporting the error.
			for i := range photos {
				p := &photos[i]
				removePhotoBlobs(s.blobs, p)
				if derr := s.store.DeletePhoto(ctx, p.ID); derr != nil {
					logrus.WithError(derr).WithField("photo_id", p.ID).Warn("batch rollback delete failed")
				}
			}
			return nil, err
		}
		photos = append(photos, *photo)
	}

	// Post-commit hook: viewers are notified after the rows exist. Broadcast
	// failure never affects the upload result.
	if s.publisher != nil {
		s.publisher.Publish(targetID, models.GalleryUpdate{
			Type:       models.UpdatePhotoUploaded,
			Photos:     photos,
			UploadedBy: uploadedBy,
			Timestamp:  time.Now().UTC(),
		})
	}
	return photos, nil
}

func (s *PhotoService) savePhoto(ctx context.Context, up PhotoUpload, uploadedBy string, uploaderID *string, assign func(*models.Photo)) (*models.Photo, error) {
	id := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	name := id + ext

	if _, err := s.blobs.Save(name, bytes.NewReader(up.Data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	thumbName := ""
	if thumb, err := blob.MakeThumbnail(up.Data); err != nil {
		logrus.WithError(err).WithField("photo_id", id).Warn("thumbnail generation failed")
	} else {
		thumbName = id + "_thumb.jpg"
		if _, err := s.blobs.Save(thumbName, bytes.NewReader(thumb)); err != nil {
			logrus.WithError(err).WithField("photo_id", id).Warn("thumbnail save failed")
			thumbName = ""
		}
	}

	photo := &models.Photo{
		ID:           id,
		UploaderID:   uploaderID,
		UploaderName: uploadedBy,
		Filename:     name,
		URL:          s.baseURL + "/uploads/" + name,
		Caption:      up.Caption,
		Tags:         up.Tags,
		UploadedAt:   time.Now().UTC(),
	}
	if photo.Tags == nil {
		photo.Tags = []string{}
	}
	if thumbName != "" {
		photo.ThumbURL = s.baseURL + "/uploads/" + thumbName
	}
	assign(photo)

	if err := s.store.InsertPhoto(ctx, photo); err != nil {
		// Roll the blobs back so a failed insert leaves no orphan files.
		_ = s.blobs.Delete(name)
		if thumbName != "" {
			_ = s.blobs.Delete(thumbName)
		}
		return nil, mapStoreErr(err)
	}
	return photo, nil
}

// ListQuickPhotos pages through an Active (or not-yet-swept but unexpired)
// session's photos, newest first.
func (s *PhotoService) ListQuickPhotos(ctx context.Context, quickID string, limit, offset int) (*models.PhotoPage, error) {
	token, err := s.store.GetToken(ctx, quickID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if token.Expired(time.Now().UTC()) {
		return nil, ErrExpired
	}
	if token.QuickID == nil {
		return nil, ErrNotFound
	}
	limit, offset = clampPage(limit, offset)
	page, err := s.store.ListQuickPhotos(ctx, *token.QuickID, limit, offset)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return page, nil
}

// ListEventPhotos pages through an event gallery, newest first.
func (s *PhotoService) ListEventPhotos(ctx context.Context, eventID string, limit, offset int) (*models.PhotoPage, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, mapStoreErr(err)
	}
	limit, offset = clampPage(limit, offset)
	page, err := s.store.ListEventPhotos(ctx, eventID, limit, offset)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return page, nil
}

// DeletePhoto removes a single photo on behalf of the owning organizer. When
// the last photo of a quick session goes, the session container and its token
// go with it.
func (s *PhotoService) DeletePhoto(ctx context.Context, organizerID, photoID string) error {
	photo, err := s.store.GetPhoto(ctx, photoID)
	if err != nil {
		return mapStoreErr(err)
	}

	switch {
	case photo.EventID != nil:
		event, err := s.store.GetEvent(ctx, *photo.EventID)
		if err != nil {
			return mapStoreErr(err)
		}
		if event.OrganizerID != organizerID {
			return ErrForbidden
		}
	case photo.QuickID != nil:
		session, err := s.store.GetQuickSession(ctx, *photo.QuickID)
		if err != nil {
			return mapStoreErr(err)
		}
		if session.CreatedBy == nil || *session.CreatedBy != organizerID {
			return ErrForbidden
		}
	default:
		return ErrNotFound
	}

	removePhotoBlobs(s.blobs, photo)
	if err := s.store.DeletePhoto(ctx, photoID); err != nil {
		return mapStoreErr(err)
	}

	if photo.QuickID != nil {
		remaining, err := s.store.CountQuickPhotos(ctx, *photo.QuickID)
		if err != nil {
			return mapStoreErr(err)
		}
		if remaining == 0 {
			if err := s.store.DeleteQuickShare(ctx, *photo.QuickID); err != nil {
				return mapStoreErr(err)
			}
		}
	}
	return nil
}

// removePhotoBlobs deletes a photo's stored files. Failures are logged, not
// propagated: blob cleanup is best-effort for both organizer deletes and the
// sweeper.
func removePhotoBlobs(blobs blob.Store, photo *models.Photo) {
	if err := blobs.Delete(photo.Filename); err != nil {
		logrus.WithError(err).WithField("photo_id", photo.ID).Warn("blob delete failed")
	}
	if photo.ThumbURL != "" {
		thumb := strings.TrimSuffix(photo.Filename, filepath.Ext(photo.Filename)) + "_thumb.jpg"
		if err := blobs.Delete(thumb); err != nil {
			logrus.WithError(err).WithField("photo_id", photo.ID).Warn("thumbnail delete failed")
		}
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
