package controllers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/middleware"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/services"
	"github.com/kendall-kelly/taller-reparaciones/testutil"
	"github.com/kendall-kelly/taller-reparaciones/views"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type controllerEnv struct {
	db       *gorm.DB
	cfg      *config.Config
	storage  *services.MockStorage
	payments *fakeGateway
}

type fakeGateway struct {
	requests []services.DepositRequest
}

func (g *fakeGateway) CreateDepositLink(ctx context.Context, req services.DepositRequest) (string, error) {
	g.requests = append(g.requests, req)
	return "https://pagos.example/checkout/" + url.PathEscape(req.Title), nil
}

// signingStorage is a MockStorage that hands out direct download URLs.
type signingStorage struct {
	*services.MockStorage
}

func (s signingStorage) GetPresignedURL(ctx context.Context, key, disposition string) (string, error) {
	return "https://cdn.example/" + key + "?disposition=" + url.QueryEscape(disposition), nil
}

func setupControllerTest(t *testing.T) *controllerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewTestDB(t)
	config.SetDB(db)

	cfg := &config.Config{
		GoEnv:          "test",
		JWTSecret:      "controller-test-secret",
		JWTIssuer:      "taller-test",
		JWTAudience:    "taller-web-test",
		SessionTTL:     time.Hour,
		DepositPercent: 50,
		MaxImageMB:     10,
		MaxVideoMB:     150,
		MaxDocumentMB:  20,
	}
	config.SetConfig(cfg)

	storage := services.NewMockStorage()
	payments := &fakeGateway{}
	services.SetUploadService(services.NewUploadService(storage))
	services.SetJournal(services.NewGormJournal(db))
	services.SetPaymentGateway(payments)

	t.Cleanup(func() {
		services.SetPaymentGateway(nil)
		services.SetJournal(nil)
	})

	return &controllerEnv{db: db, cfg: cfg, storage: storage, payments: payments}
}

// router returns an engine with the page templates, logged in as user when
// user is not nil.
func (e *controllerEnv) router(user *models.User) *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(views.MustTemplates())
	r.Use(middleware.Flashes())
	if user != nil {
		r.Use(mockAuthMiddleware(user))
	}
	return r
}

// mockAuthMiddleware sets up the context the way LoadCurrentUser does
func mockAuthMiddleware(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetCurrentUser(c, user)
		c.Next()
	}
}

func postForm(r http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postMultipart(t *testing.T, r http.Handler, path string, fields map[string]string, files ...testutil.FormFile) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := testutil.MultipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// flashOf returns the flash message queued by the response, "" if none.
func flashOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "taller_flash" && c.MaxAge >= 0 && c.Value != "" {
			v, err := url.QueryUnescape(c.Value)
			require.NoError(t, err)
			return v
		}
	}
	return ""
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}
