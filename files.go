package bookmarket

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrFileNotFound = errors.New("file not found")

// File records one stored upload. The bytes themselves live in a
// BlobStore; URL is what clients fetch them from.
type File struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
}

type FileStore interface {
	CreateFile(file *File) error
	// ListUserFiles returns the user's uploads, newest first.
	ListUserFiles(userID string) ([]*File, error)
}

// BlobStore holds upload payloads keyed by filename.
type BlobStore interface {
	Save(filename string, r io.Reader) (int64, error)
	Delete(filename string) error
}

// DiskBlobStore keeps blobs as plain files under Dir.
type DiskBlobStore struct {
	Dir string
}

func (d *DiskBlobStore) Save(filename string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(filepath.Join(d.Dir, filepath.Base(filename)))
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (d *DiskBlobStore) Delete(filename string) error {
	err := os.Remove(filepath.Join(d.Dir, filepath.Base(filename)))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// uniqueFilename builds a collision-free stored name keeping the
// original extension so static serving picks a sensible content type.
func uniqueFilename(prefix, original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%s-%d%s", prefix, now.UnixNano(), ext)
}
