package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	appConfig "github.com/kendall-kelly/taller-reparaciones/config"
)

// ErrFileNotFound is returned when a storage key does not exist.
var ErrFileNotFound = errors.New("file not found in storage")

// StorageInterface stores uploaded files under caller-chosen keys
type StorageInterface interface {
	UploadFile(ctx context.Context, key string, fileHeader *multipart.FileHeader) error
	OpenFile(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, key string) error
}

// URLSigner is implemented by backends that can hand out temporary direct
// download URLs.
type URLSigner interface {
	GetPresignedURL(ctx context.Context, key, disposition string) (string, error)
}

var storageInstance StorageInterface

// InitStorage creates the backend selected by STORAGE_BACKEND.
func InitStorage(ctx context.Context, cfg *appConfig.Config) (StorageInterface, error) {
	var (
		store StorageInterface
		err   error
	)
	switch cfg.StorageBackend {
	case appConfig.StorageS3:
		store, err = NewS3Storage(ctx, cfg)
	case appConfig.StorageLocal:
		store, err = NewLocalStorage(cfg.UploadDir)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}
	storageInstance = store
	return store, nil
}

// GetStorage returns the initialized storage backend
func GetStorage() StorageInterface {
	return storageInstance
}

// SetStorage sets the storage backend (primarily for testing)
func SetStorage(store StorageInterface) {
	storageInstance = store
}
