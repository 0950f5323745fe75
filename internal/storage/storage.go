// Package storage publishes rendered documents to object storage.
package storage

import (
	"context"
	"errors"
)

// ObjectStorage stores an object and hands out a URL a WhatsApp client can
// fetch it from.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

var ErrEmptyKey = errors.New("storage key is required")
