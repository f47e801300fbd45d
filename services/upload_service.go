package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	appConfig "github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/utils"
	"go.uber.org/zap"
)

// UploadLimits are the size caps, in megabytes, per kind of upload.
type UploadLimits struct {
	ImageMB    int64
	VideoMB    int64
	DocumentMB int64
}

// DefaultUploadLimits mirrors the configuration defaults.
var DefaultUploadLimits = UploadLimits{ImageMB: 10, VideoMB: 150, DocumentMB: 20}

// LimitsFromConfig reads the upload limits from cfg, falling back to defaults.
func LimitsFromConfig(cfg *appConfig.Config) UploadLimits {
	if cfg == nil {
		return DefaultUploadLimits
	}
	return UploadLimits{ImageMB: cfg.MaxImageMB, VideoMB: cfg.MaxVideoMB, DocumentMB: cfg.MaxDocumentMB}
}

// StoredFile describes a file written to storage.
type StoredFile struct {
	Key  string
	Name string
	Size int64
}

// UploadService validates uploads and writes them to the storage backend
type UploadService struct {
	storage StorageInterface
	now     func() time.Time
}

var uploadServiceInstance *UploadService

// InitUploadService initializes the upload service on top of storage
func InitUploadService(storage StorageInterface) *UploadService {
	uploadServiceInstance = NewUploadService(storage)
	return uploadServiceInstance
}

func NewUploadService(storage StorageInterface) *UploadService {
	return &UploadService{storage: storage, now: time.Now}
}

// GetUploadService returns the initialized upload service instance
func GetUploadService() *UploadService {
	return uploadServiceInstance
}

// SetUploadService sets the upload service instance (primarily for testing)
func SetUploadService(service *UploadService) {
	uploadServiceInstance = service
}

// Store validates fileHeader against rule and uploads it under a fresh key.
func (s *UploadService) Store(ctx context.Context, fileHeader *multipart.FileHeader, rule utils.FileRule) (StoredFile, error) {
	if err := utils.ValidateFile(fileHeader, rule); err != nil {
		return StoredFile{}, err
	}

	key := utils.BuildObjectKey(rule.Folder, fileHeader.Filename, s.now())
	if err := s.storage.UploadFile(ctx, key, fileHeader); err != nil {
		return StoredFile{}, fmt.Errorf("failed to store upload: %w", err)
	}

	return StoredFile{Key: key, Name: utils.SanitizeFilename(fileHeader.Filename), Size: fileHeader.Size}, nil
}

// Open returns the content of a stored file.
func (s *UploadService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, ErrFileNotFound
	}
	return s.storage.OpenFile(ctx, key)
}

// SignedURL returns a direct download URL when the backend supports it.
func (s *UploadService) SignedURL(ctx context.Context, key, disposition string) (string, bool, error) {
	signer, ok := s.storage.(URLSigner)
	if !ok {
		return "", false, nil
	}
	url, err := signer.GetPresignedURL(ctx, key, disposition)
	if err != nil {
		return "", true, err
	}
	return url, true, nil
}

// Discard removes files stored for a write that did not complete. Failures
// are logged and leave an orphaned object behind.
func (s *UploadService) Discard(ctx context.Context, files ...StoredFile) {
	for _, f := range files {
		if f.Key == "" {
			continue
		}
		if err := s.storage.DeleteFile(ctx, f.Key); err != nil {
			zap.L().Warn("failed to discard upload", zap.String("key", f.Key), zap.Error(err))
		}
	}
}
