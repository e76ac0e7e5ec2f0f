// Package blob stores uploaded files under generated, collision-resistant keys.
package blob

import (
	"context"
	"io"
	"time"

	"task-tracker/internal/apperr"
)

// DefaultMaxSize caps generic uploads.
const DefaultMaxSize int64 = 5 << 20

// AllowedTypes is the MIME allow-list for uploads.
var AllowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
	"text/plain":      true,
}

// Object describes a stored blob.
type Object struct {
	Key          string    `json:"name"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimetype"`
	CreatedAt    time.Time `json:"createdAt"`
	ModifiedAt   time.Time `json:"uploadAt"`
}

// Store is the capability set the rest of the system needs from blob storage.
type Store interface {
	Put(ctx context.Context, r io.Reader, originalName, mimeType string) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) bool
	Stat(ctx context.Context, key string) (Object, error)
	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, key string) error
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

var (
	errUnsupported = apperr.New(apperr.UnsupportedMediaType, "invalid file type")
	errTooLarge    = apperr.New(apperr.PayloadTooLarge, "file size too large")
	errNotFound    = apperr.New(apperr.NotFound, "file not found")
)

func unavailable(err error) error {
	return apperr.Wrap(err, apperr.StorageUnavailable, "storage unavailable")
}

func unreadable(err error) error {
	return apperr.Wrap(err, apperr.BadRequest, "cannot read uploaded file")
}
