package storage

import (
	"context"
)

// Object identifies a stored file.
type Object struct {
	Filename string
	URL      string
	// PublicID is the provider identifier, empty for local files.
	PublicID string
}

// ObjectStore persists uploaded files and serves them by URL.
type ObjectStore interface {
	Put(ctx context.Context, originalName, contentType string, data []byte) (Object, error)
	Delete(ctx context.Context, obj Object) error
	// DeleteByURL removes the object a public URL points at. Unknown URLs
	// are not an error.
	DeleteByURL(ctx context.Context, url string) error
	Name() string
}
