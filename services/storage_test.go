package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appConfig "github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/testutil"
	"github.com/kendall-kelly/taller-reparaciones/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStorage(root)
	require.NoError(t, err)
	ctx := context.Background()

	key := "presupuestos/2026/03/abc_presupuesto.pdf"
	require.NoError(t, store.UploadFile(ctx, key, testutil.FileHeader(t, "presupuesto.pdf", []byte("contenido"))))

	_, err = os.Stat(filepath.Join(root, "presupuestos", "2026", "03", "abc_presupuesto.pdf"))
	require.NoError(t, err)

	rc, err := store.OpenFile(ctx, key)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "contenido", string(content))

	require.NoError(t, store.DeleteFile(ctx, key))
	_, err = store.OpenFile(ctx, key)
	assert.ErrorIs(t, err, ErrFileNotFound)

	assert.NoError(t, store.DeleteFile(ctx, key), "deleting a missing file is not an error")
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../secret", "a/../../b", "/etc/passwd", `a\b`} {
		_, err := store.OpenFile(ctx, key)
		assert.Error(t, err, key)
		assert.NotErrorIs(t, err, ErrFileNotFound, key)
	}
}

func TestInitStorageLocal(t *testing.T) {
	defer SetStorage(nil)

	dir := filepath.Join(t.TempDir(), "media")
	store, err := InitStorage(context.Background(), &appConfig.Config{StorageBackend: appConfig.StorageLocal, UploadDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, store)
	assert.Same(t, store, GetStorage())
	assert.DirExists(t, dir)

	_, err = InitStorage(context.Background(), &appConfig.Config{StorageBackend: "ftp"})
	assert.Error(t, err)
}

func TestS3StoragePresignedURL(t *testing.T) {
	store, err := NewS3Storage(context.Background(), &appConfig.Config{
		AWSRegion:          "auto",
		AWSS3Bucket:        "taller",
		AWSAccessKeyID:     "AKIDEXAMPLE",
		AWSSecretAccessKey: "secret",
		S3Endpoint:         "http://localhost:9000",
	})
	require.NoError(t, err)

	url, err := store.GetPresignedURL(context.Background(), "presupuestos/2026/03/abc_p.pdf", `attachment; filename="p.pdf"`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/taller/presupuestos/2026/03/abc_p.pdf?"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "response-content-disposition=attachment")
	assert.Contains(t, url, "response-content-type=application%2Fpdf")
}

func TestUploadServiceStore(t *testing.T) {
	storage := NewMockStorage()
	uploads := NewUploadService(storage)
	ctx := context.Background()

	stored, err := uploads.Store(ctx, testutil.FileHeader(t, "Mi Tabla (1).PNG", []byte("png")), utils.ImageRule(10))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Key, "reparaciones/"))
	assert.Equal(t, int64(3), stored.Size)
	assert.True(t, storage.FileExists(stored.Key))

	rc, err := uploads.Open(ctx, stored.Key)
	require.NoError(t, err)
	content, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "png", string(content))

	_, err = uploads.Open(ctx, "")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, supported, err := uploads.SignedURL(ctx, stored.Key, "inline")
	require.NoError(t, err)
	assert.False(t, supported, "mock storage cannot sign URLs")

	uploads.Discard(ctx, stored, StoredFile{})
	assert.False(t, storage.FileExists(stored.Key))
}

func TestUploadServiceStoreRejectsInvalidFile(t *testing.T) {
	storage := NewMockStorage()
	uploads := NewUploadService(storage)

	_, err := uploads.Store(context.Background(), testutil.FileHeader(t, "notas.txt", []byte("x")), utils.QuoteRule(20))
	var uploadErr *utils.FileUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "INVALID_FILE_FORMAT", uploadErr.Code)
	assert.Empty(t, storage.Keys())
}

func TestLimitsFromConfig(t *testing.T) {
	assert.Equal(t, DefaultUploadLimits, LimitsFromConfig(nil))
	assert.Equal(t, UploadLimits{ImageMB: 5, VideoMB: 200, DocumentMB: 8},
		LimitsFromConfig(&appConfig.Config{MaxImageMB: 5, MaxVideoMB: 200, MaxDocumentMB: 8}))
}
