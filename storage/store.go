package storage

import (
	"context"
	"errors"
)

var ErrStoreDisabled = errors.New("object store is not configured")

type PutResult struct {
	Key      string
	Location string
	ETag     string
}

// ObjectStore хранит опубликованные снимки результатов турниров.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, body []byte) (*PutResult, error)

	Delete(ctx context.Context, key string) error

	PublicURL(key string) string
}

// NopStore используется, когда R2 не настроен: публикация работает без выгрузки.
type NopStore struct{}

func (NopStore) Put(ctx context.Context, key string, contentType string, body []byte) (*PutResult, error) {
	return nil, ErrStoreDisabled
}

func (NopStore) Delete(ctx context.Context, key string) error { return nil }

func (NopStore) PublicURL(key string) string { return "" }
