package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"barqpix-backend/internal/models"
	"barqpix-backend/internal/store"

	"github.com/google/uuid"
)

// memBlobs is an in-memory blob.Store for tests, with optional save and
// delete failure injection.
type memBlobs struct {
	mu         sync.Mutex
	files      map[string][]byte
	failDelete map[string]bool
	deletes    []string
	saves      int
	// failSaveAfter, when positive, fails every Save past that many calls.
	failSaveAfter int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{files: make(map[string][]byte), failDelete: make(map[string]bool)}
}

func (b *memBlobs) Save(name string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	if b.failSaveAfter > 0 && b.saves > b.failSaveAfter {
		return 0, errors.New("simulated blob failure")
	}
	b.files[name] = data
	return int64(len(data)), nil
}

func (b *memBlobs) Delete(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, name)
	if b.failDelete[name] {
		return errors.New("simulated blob failure")
	}
	delete(b.files, name)
	return nil
}

func (b *memBlobs) fileCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

func (b *memBlobs) Exists(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[name]
	return ok
}

// recordingPublisher captures published gallery updates in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	targetID string
	message  interface{}
}

func (p *recordingPublisher) Publish(targetID string, message interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{targetID: targetID, message: message})
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func newPhotoService(t *testing.T) (*PhotoService, *store.Memory, *memBlobs, *recordingPublisher) {
	t.Helper()
	mem := store.NewMemory()
	blobs := newMemBlobs()
	pub := &recordingPublisher{}
	return NewPhotoService(mem, blobs, pub, "http://localhost:3001"), mem, blobs, pub
}

func TestPhotoService_AppendQuickPhotos(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip through listing", func(t *testing.T) {
		svc, mem, blobs, _ := newPhotoService(t)
		_, quickID := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))

		photos, err := svc.AppendQuickPhotos(ctx, quickID, []PhotoUpload{{
			Filename: "cake.png",
			Data:     pngBytes(t),
			Caption:  "the cake",
			Tags:     []string{"dessert", "closeup"},
		}}, "amira", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(photos) != 1 {
			t.Fatalf("expected 1 photo, got %d", len(photos))
		}
		if !blobs.Exists(photos[0].Filename) {
			t.Error("expected blob to be stored")
		}

		page, err := svc.ListQuickPhotos(ctx, quickID, 0, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(page.Photos) != 1 {
			t.Fatalf("expected 1 listed photo, got %d", len(page.Photos))
		}
		got := page.Photos[0]
		if got.ID != photos[0].ID || got.Caption != "the cake" {
			t.Errorf("round trip mismatch: %+v", got)
		}
		if len(got.Tags) != 2 || got.Tags[0] != "dessert" {
			t.Errorf("tags mismatch: %v", got.Tags)
		}
		if got.UploaderName != "amira" {
			t.Errorf("expected uploader amira, got %q", got.UploaderName)
		}
	})

	t.Run("rejects expired session", func(t *testing.T) {
		svc, mem, _, _ := newPhotoService(t)
		_, quickID := seedQuickToken(t, mem, time.Now().UTC().Add(-time.Minute))

		_, err := svc.AppendQuickPhotos(ctx, quickID, []PhotoUpload{{Filename: "a.png", Data: pngBytes(t)}}, "", nil)
		if !errors.Is(err, ErrExpired) {
			t.Errorf("expected ErrExpired, got %v", err)
		}
	})

	t.Run("rejects at exact expiry", func(t *testing.T) {
		svc, mem, _, _ := newPhotoService(t)
		_, quickID := seedQuickToken(t, mem, time.Now().UTC())

		_, err := svc.AppendQuickPhotos(ctx, quickID, []PhotoUpload{{Filename: "a.png", Data: pngBytes(t)}}, "", nil)
		if !errors.Is(err, ErrExpired) {
			t.Errorf("expected ErrExpired, got %v", err)
		}
	})

	t.Run("accepts one second before expiry", func(t *testing.T) {
		svc, mem, _, _ := newPhotoService(t)
		_, quickID := seedQuickToken(t, mem, time.Now().UTC().Add(time.Second))

		if _, err := svc.AppendQuickPhotos(ctx, quickID, []PhotoUpload{{Filename: "a.png", Data: pngBytes(t)}}, "", nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		svc, _, _, _ := newPhotoService(t)
		_, err := svc.AppendQuickPhotos(ctx, uuid.New().String(), []PhotoUpload{{Filename: "a.png", Data: pngBytes(t)}}, "", nil)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("failed batch persists nothing and stays silent", func(t *testing.T) {
		svc, mem, blobs, pub := newPhotoService(t)
		_, quickID := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))

		// The first photo lands (main + thumbnail saves), the second photo's
		// blob save fails mid-batch.
		blobs.failSaveAfter = 2
		_, err := svc.AppendQuickPhotos(ctx, quickID, []PhotoUpload{
			{Filename: "1.png", Data: pngBytes(t)},
			{Filename: "2.png", Data: pngBytes(t)},
		}, "", nil)
		if !errors.Is(err, ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}

		if n, err := mem.CountQuickPhotos(ctx, quickID); err != nil || n != 0 {
			t.Errorf("expected no persisted photos after rollback, got %d (%v)", n, err)
		}
		if n := blobs.fileCount(); n != 0 {
			t.Errorf("expected no blobs left after rollback, got %d", n)
		}
		if len(pub.events) != 0 {
			t.Errorf("expected no broadcast for a failed batch, got %d", len(pub.events))
		}
	})

	t.Run("empty upload set", func(t *testing.T) {
		svc, mem, _, _ := newPhotoService(t)
		_, quickID := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))

		if _, err := svc.AppendQuickPhotos(ctx, quickID, nil, "", nil); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestPhotoService_BroadcastOrdering(t *testing.T) {
	ctx := context.Background()
	svc, mem, _, pub := newPhotoService(t)
	_, quickID := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))

	first, err := svc.AppendQuickPhotos(ctx, quickID, []PhotoUpload{{Filename: "1.png", Data: pngBytes(t)}}, "a", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.AppendQuickPhotos(ctx, quickID, []PhotoUpload{{Filename: "2.png", Data: pngBytes(t)}}, "b", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(pub.events))
	}
	for i, want := range [][]models.Photo{first, second} {
		update, ok := pub.events[i].message.(models.GalleryUpdate)
		if !ok {
			t.Fatalf("unexpected message type %T", pub.events[i].message)
		}
		if update.Type != models.UpdatePhotoUploaded {
			t.Errorf("expected PHOTO_UPLOADED, got %q", update.Type)
		}
		if pub.events[i].targetID != quickID {
			t.Errorf("expected target %s, got %s", quickID, pub.events[i].targetID)
		}
		if update.Photos[0].ID != want[0].ID {
			t.Errorf("broadcast %d out of upload-completion order", i)
		}
	}
}

func TestPhotoService_DeletePhoto(t *testing.T) {
	ctx := context.Background()

	t.Run("deleting the last photo collapses the session", func(t *testing.T) {
		svc, mem, blobs, _ := newPhotoService(t)
		organizer := uuid.New().String()

		tokenID := uuid.New().String()
		quickID := uuid.New().String()
		exp := time.Now().UTC().Add(time.Hour)
		err := mem.CreateQuickShare(ctx,
			&models.QRToken{ID: tokenID, TargetType: models.TargetQuick, QuickID: &quickID, Title: "drop", CreatedAt: time.Now().UTC(), ExpiresAt: &exp},
			&models.QuickSession{QuickID: quickID, TokenID: tokenID, CreatedBy: &organizer, CreatedAt: time.Now().UTC()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		photos, err := svc.AppendQuickPhotos(ctx, quickID, []PhotoUpload{{Filename: "only.png", Data: pngBytes(t)}}, "", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := svc.DeletePhoto(ctx, organizer, photos[0].ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := mem.GetQuickSession(ctx, quickID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected session gone, got %v", err)
		}
		if _, err := mem.GetToken(ctx, tokenID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected token gone, got %v", err)
		}
		if blobs.Exists(photos[0].Filename) {
			t.Error("expected blob removed")
		}
	})

	t.Run("session with photos left stays", func(t *testing.T) {
		svc, mem, _, _ := newPhotoService(t)
		organizer := uuid.New().String()

		tokenID := uuid.New().String()
		quickID := uuid.New().String()
		exp := time.Now().UTC().Add(time.Hour)
		if err := mem.CreateQuickShare(ctx,
			&models.QRToken{ID: tokenID, TargetType: models.TargetQuick, QuickID: &quickID, Title: "drop", CreatedAt: time.Now().UTC(), ExpiresAt: &exp},
			&models.QuickSession{QuickID: quickID, TokenID: tokenID, CreatedBy: &organizer, CreatedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		photos, err := svc.AppendQuickPhotos(ctx, quickID, []PhotoUpload{
			{Filename: "1.png", Data: pngBytes(t)},
			{Filename: "2.png", Data: pngBytes(t)},
		}, "", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := svc.DeletePhoto(ctx, organizer, photos[0].ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := mem.GetQuickSession(ctx, quickID); err != nil {
			t.Errorf("expected session to survive: %v", err)
		}
	})

	t.Run("event photo requires owning organizer", func(t *testing.T) {
		svc, mem, _, _ := newPhotoService(t)
		organizer := uuid.New().String()
		event := &models.Event{ID: uuid.New().String(), OrganizerID: organizer, Title: "expo", CreatedAt: time.Now().UTC()}
		if err := mem.CreateEvent(ctx, event); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		photos, err := svc.AppendEventPhotos(ctx, event.ID, []PhotoUpload{{Filename: "a.png", Data: pngBytes(t)}}, "guest", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := svc.DeletePhoto(ctx, uuid.New().String(), photos[0].ID); !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
		if err := svc.DeletePhoto(ctx, organizer, photos[0].ID); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestPhotoService_ListQuickPhotos_Expired(t *testing.T) {
	svc, mem, _, _ := newPhotoService(t)
	_, quickID := seedQuickToken(t, mem, time.Now().UTC().Add(-time.Minute))

	if _, err := svc.ListQuickPhotos(context.Background(), quickID, 0, 0); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}
