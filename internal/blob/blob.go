// Package blob stores uploaded image files. The filesystem implementation
// serves as the image CDN collaborator; everything above it talks to the
// Store interface only.
package blob

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"
)

const thumbnailSize = 300

// Store persists and removes image blobs by name.
type Store interface {
	Save(name string, r io.Reader) (int64, error)
	Delete(name string) error
	Exists(name string) bool
}

// FileSystemStore keeps blobs as flat files under a base directory.
type FileSystemStore struct {
	baseDir string
}

func NewFileSystemStore(baseDir string) *FileSystemStore {
	return &FileSystemStore{baseDir: baseDir}
}

func (fs *FileSystemStore) path(name string) string {
	return filepath.Join(fs.baseDir, filepath.Base(name))
}

func (fs *FileSystemStore) Save(name string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(fs.baseDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create blob dir: %w", err)
	}
	f, err := os.Create(fs.path(name))
	if err != nil {
		return 0, fmt.Errorf("failed to create blob: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		os.Remove(fs.path(name))
		return 0, fmt.Errorf("failed to write blob: %w", err)
	}
	return n, nil
}

// Delete removes a blob. A missing blob is not an error so that cleanup
// passes stay idempotent.
func (fs *FileSystemStore) Delete(name string) error {
	if err := os.Remove(fs.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (fs *FileSystemStore) Exists(name string) bool {
	_, err := os.Stat(fs.path(name))
	return err == nil
}

// MakeThumbnail decodes an image and returns a JPEG thumbnail bounded by
// thumbnailSize on the longer edge.
func MakeThumbnail(src []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	thumb := resize.Thumbnail(thumbnailSize, thumbnailSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
