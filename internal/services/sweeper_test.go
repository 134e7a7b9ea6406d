package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"barqpix-backend/internal/models"
	"barqpix-backend/internal/store"

	"github.com/google/uuid"
)

func TestSweeper_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("reclaims expired session with its photos and token", func(t *testing.T) {
		mem := store.NewMemory()
		blobs := newMemBlobs()
		photoSvc := NewPhotoService(mem, blobs, nil, "")

		// Active session stays untouched.
		_, activeQuick := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))
		if _, err := photoSvc.AppendQuickPhotos(ctx, activeQuick, []PhotoUpload{{Filename: "keep.png", Data: pngBytes(t)}}, "", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Upload while active, then rewrite the expiry into the past — the
		// 1-minute-token scenario without the wait.
		expiredToken, expiredQuick := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))
		photos, err := photoSvc.AppendQuickPhotos(ctx, expiredQuick, []PhotoUpload{{Filename: "gone.png", Data: pngBytes(t)}}, "", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expireQuickToken(t, mem, expiredToken, expiredQuick)

		sw := NewSweeper(mem, blobs, time.Minute, 720*time.Hour)
		res := sw.RunOnce(ctx)

		if res.SessionsDeleted != 1 {
			t.Errorf("expected 1 session deleted, got %d", res.SessionsDeleted)
		}
		if res.PhotosDeleted != 1 {
			t.Errorf("expected 1 photo deleted, got %d", res.PhotosDeleted)
		}
		if _, err := mem.GetToken(ctx, expiredToken); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected expired token gone, got %v", err)
		}
		if _, err := mem.GetQuickSession(ctx, expiredQuick); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected expired session gone, got %v", err)
		}
		if blobs.Exists(photos[0].Filename) {
			t.Error("expected expired photo blob removed")
		}
		if _, err := mem.GetQuickSession(ctx, activeQuick); err != nil {
			t.Errorf("expected active session to survive: %v", err)
		}
	})

	t.Run("second run deletes nothing extra", func(t *testing.T) {
		mem := store.NewMemory()
		blobs := newMemBlobs()
		tokenID, quickID := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))
		expireQuickToken(t, mem, tokenID, quickID)

		sw := NewSweeper(mem, blobs, time.Minute, 720*time.Hour)
		first := sw.RunOnce(ctx)
		second := sw.RunOnce(ctx)

		if first.SessionsDeleted != 1 {
			t.Errorf("expected first run to delete 1 session, got %d", first.SessionsDeleted)
		}
		if second.SessionsDeleted != 0 || second.PhotosDeleted != 0 {
			t.Errorf("expected idempotent second run, got %+v", second)
		}
	})

	t.Run("retention pass removes stale quick photos", func(t *testing.T) {
		mem := store.NewMemory()
		blobs := newMemBlobs()
		_, quickID := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))

		stale := &models.Photo{
			ID:           uuid.New().String(),
			QuickID:      &quickID,
			UploaderName: "anonymous",
			Filename:     "stale.jpg",
			URL:          "/uploads/stale.jpg",
			Tags:         []string{},
			UploadedAt:   time.Now().UTC().Add(-1000 * time.Hour),
		}
		if err := mem.InsertPhoto(ctx, stale); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sw := NewSweeper(mem, blobs, time.Minute, 720*time.Hour)
		res := sw.RunOnce(ctx)

		if res.PhotosDeleted != 1 {
			t.Errorf("expected 1 stale photo deleted, got %d", res.PhotosDeleted)
		}
		if _, err := mem.GetPhoto(ctx, stale.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected stale photo gone, got %v", err)
		}
	})

	t.Run("blob failure does not abort the pass", func(t *testing.T) {
		mem := store.NewMemory()
		blobs := newMemBlobs()
		photoSvc := NewPhotoService(mem, blobs, nil, "")

		tokenA, quickA := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))
		photosA, err := photoSvc.AppendQuickPhotos(ctx, quickA, []PhotoUpload{{Filename: "bad.png", Data: pngBytes(t)}}, "", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tokenB, quickB := seedQuickToken(t, mem, time.Now().UTC().Add(time.Hour))
		expireQuickToken(t, mem, tokenA, quickA)
		expireQuickToken(t, mem, tokenB, quickB)

		blobs.failDelete[photosA[0].Filename] = true

		sw := NewSweeper(mem, blobs, time.Minute, 720*time.Hour)
		res := sw.RunOnce(ctx)

		// Both sessions still get reclaimed; the failed blob is only logged.
		if res.SessionsDeleted != 2 {
			t.Errorf("expected 2 sessions deleted, got %d", res.SessionsDeleted)
		}
		if _, err := mem.GetQuickSession(ctx, quickA); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected session gone despite blob failure, got %v", err)
		}
	})
}

// expireQuickToken rewrites a seeded token's expiry into the past.
func expireQuickToken(t *testing.T, mem *store.Memory, tokenID, quickID string) {
	t.Helper()
	ctx := context.Background()
	tok, err := mem.GetToken(ctx, tokenID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	tok.ExpiresAt = &past
	session, err := mem.GetQuickSession(ctx, quickID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Recreate with the past expiry; CreateQuickShare overwrites in place.
	if err := mem.CreateQuickShare(ctx, tok, session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	mem := store.NewMemory()
	sw := NewSweeper(mem, newMemBlobs(), 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	sw.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		sw.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
