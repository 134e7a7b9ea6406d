package blob

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSystemStore_Save(t *testing.T) {
	t.Run("saves file to disk", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		n, err := store.Save("photo.jpg", bytes.NewReader([]byte("image bytes")))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 11 {
			t.Errorf("expected 11 bytes written, got %d", n)
		}

		content, err := os.ReadFile(filepath.Join(dir, "photo.jpg"))
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "image bytes" {
			t.Errorf("expected 'image bytes', got %q", content)
		}
	})

	t.Run("ignores path components in names", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		if _, err := store.Save("../escape.jpg", bytes.NewReader([]byte("x"))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "escape.jpg")); err != nil {
			t.Errorf("expected file inside base dir: %v", err)
		}
	})
}

func TestFileSystemStore_Delete(t *testing.T) {
	dir := t.TempDir()
	store := NewFileSystemStore(dir)

	if _, err := store.Save("gone.jpg", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Delete("gone.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Exists("gone.jpg") {
		t.Error("expected blob removed")
	}

	t.Run("missing blob is not an error", func(t *testing.T) {
		if err := store.Delete("never-existed.jpg"); err != nil {
			t.Errorf("expected idempotent delete, got %v", err)
		}
	})
}

func TestMakeThumbnail(t *testing.T) {
	t.Run("produces a bounded jpeg", func(t *testing.T) {
		src := image.NewRGBA(image.Rect(0, 0, 1200, 800))
		var buf bytes.Buffer
		if err := png.Encode(&buf, src); err != nil {
			t.Fatalf("failed to encode source: %v", err)
		}

		thumb, err := MakeThumbnail(buf.Bytes())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		img, format, err := image.Decode(bytes.NewReader(thumb))
		if err != nil {
			t.Fatalf("failed to decode thumbnail: %v", err)
		}
		if format != "jpeg" {
			t.Errorf("expected jpeg, got %s", format)
		}
		bounds := img.Bounds()
		if bounds.Dx() > thumbnailSize || bounds.Dy() > thumbnailSize {
			t.Errorf("thumbnail exceeds bound: %dx%d", bounds.Dx(), bounds.Dy())
		}
	})

	t.Run("rejects non-image data", func(t *testing.T) {
		if _, err := MakeThumbnail([]byte("not an image")); err == nil {
			t.Error("expected error for non-image data")
		}
	})
}
