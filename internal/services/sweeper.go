package services

import (
	"context"
	"errors"
	"time"

	"barqpix-backend/internal/blob"
	"barqpix-backend/internal/store"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically reclaims expired quick-share sessions and stale
// quick-share photos. It is reclamation only; expiry is enforced at the
// access boundary regardless of whether the sweeper has run.
type Sweeper struct {
	store     store.Store
	blobs     blob.Store
	interval  time.Duration
	retention time.Duration
	done      chan struct{}
}

// SweepResult reports what one pass removed.
type SweepResult struct {
	SessionsDeleted int `json:"sessions_deleted"`
	PhotosDeleted   int `json:"photos_deleted"`
}

func NewSweeper(s store.Store, blobs blob.Store, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		store:     s,
		blobs:     blobs,
		interval:  interval,
		retention: retention,
		done:      make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine. The loop runs one
// pass immediately, then on every tick, and exits when ctx is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	logrus.WithFields(logrus.Fields{
		"interval":  sw.interval,
		"retention": sw.retention,
	}).Info("expiry sweeper started")

	go func() {
		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		sw.RunOnce(ctx)

		for {
			select {
			case <-ticker.C:
				sw.RunOnce(ctx)
			case <-ctx.Done():
				logrus.Info("expiry sweeper stopping")
				close(sw.done)
				return
			}
		}
	}()
}

// Wait blocks until the sweep loop has fully stopped.
func (sw *Sweeper) Wait() {
	<-sw.done
}

// RunOnce executes a single sweep pass. Per-item failures are logged and
// skipped so one bad record never blocks reclamation of the rest, and
// re-running a partially failed pass is safe: gone items are simply absent.
func (sw *Sweeper) RunOnce(ctx context.Context) SweepResult {
	now := time.Now().UTC()
	var res SweepResult

	expired, err := sw.store.ExpiredQuickSessions(ctx, now)
	if err != nil {
		logrus.WithError(err).Error("failed to list expired sessions")
	}
	for _, session := range expired {
		photos, err := sw.store.SessionPhotos(ctx, session.QuickID)
		if err != nil {
			logrus.WithError(err).WithField("quick_id", session.QuickID).Error("failed to list session photos")
			continue
		}
		for i := range photos {
			removePhotoBlobs(sw.blobs, &photos[i])
		}
		if err := sw.store.DeleteQuickShare(ctx, session.QuickID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // already reclaimed
			}
			logrus.WithError(err).WithField("quick_id", session.QuickID).Error("failed to delete expired session")
			continue
		}
		res.SessionsDeleted++
		res.PhotosDeleted += len(photos)
		logrus.WithFields(logrus.Fields{
			"quick_id": session.QuickID,
			"photos":   len(photos),
		}).Info("reclaimed expired quick-share session")
	}

	// Retention pass: quick-share photos past the retention window go even if
	// their session bookkeeping is inconsistent.
	stale, err := sw.store.QuickPhotosOlderThan(ctx, now.Add(-sw.retention))
	if err != nil {
		logrus.WithError(err).Error("failed to list stale photos")
		return res
	}
	for i := range stale {
		removePhotoBlobs(sw.blobs, &stale[i])
		if err := sw.store.DeletePhoto(ctx, stale[i].ID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logrus.WithError(err).WithField("photo_id", stale[i].ID).Error("failed to delete stale photo")
			}
			continue
		}
		res.PhotosDeleted++
	}

	if res.SessionsDeleted > 0 || res.PhotosDeleted > 0 {
		logrus.WithFields(logrus.Fields{
			"sessions": res.SessionsDeleted,
			"photos":   res.PhotosDeleted,
		}).Info("sweep pass complete")
	}
	return res
}
