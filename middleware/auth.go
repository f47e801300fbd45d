package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"go.uber.org/zap"
)

const (
	// SessionCookieName holds the signed session token.
	SessionCookieName = "taller_session"

	// LoginPath is where anonymous users are sent.
	LoginPath = "/accounts/login/"

	userIDKey        = "user_id"
	claimsKey        = "validated_claims"
	currentUserKey   = "current_user"
	permissionDenied = "No tenés permisos para acceder a esa sección."
)

// SessionClaims are the custom claims of a session token.
type SessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Validate rejects tokens without the claims the app relies on.
func (c *SessionClaims) Validate(ctx context.Context) error {
	if c.Username == "" {
		return errors.New("missing username claim")
	}
	switch c.Role {
	case models.RoleCustomer, models.RoleStaff, models.RoleSuperuser:
		return nil
	}
	return errors.New("unknown role claim")
}

// UserLookup resolves a user by primary key.
type UserLookup interface {
	Get(ctx context.Context, id uint) (*models.User, error)
}

// NewSessionValidator builds the HS256 validator for session tokens.
func NewSessionValidator(cfg *config.Config) (*validator.Validator, error) {
	secret := []byte(cfg.JWTSecret)
	keyFunc := func(ctx context.Context) (interface{}, error) {
		return secret, nil
	}

	return validator.New(
		keyFunc,
		validator.HS256,
		cfg.JWTIssuer,
		[]string{cfg.JWTAudience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &SessionClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
}

// EnsureValidToken checks the session cookie. Requests without a valid token
// are redirected to the login page with the current path as next.
func EnsureValidToken(cfg *config.Config) gin.HandlerFunc {
	jwtValidator, err := NewSessionValidator(cfg)
	if err != nil {
		zap.L().Fatal("failed to set up the session validator", zap.Error(err))
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		if errors.Is(err, jwtmiddleware.ErrJWTMissing) {
			zap.L().Debug("no session cookie", zap.String("path", r.URL.Path))
		} else {
			zap.L().Info("rejected session token", zap.String("path", r.URL.Path), zap.Error(err))
			http.SetCookie(w, expiredSessionCookie(cfg))
		}
		http.Redirect(w, r, LoginURL(r.URL.RequestURI()), http.StatusFound)
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithTokenExtractor(jwtmiddleware.CookieTokenExtractor(SessionCookieName)),
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			passed = true
			claims := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)

			c.Request = r
			c.Set(userIDKey, claims.RegisteredClaims.Subject)
			c.Set(claimsKey, claims)

			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}

// LoadCurrentUser resolves the token subject into a user. Sessions of
// deleted users are cleared.
func LoadCurrentUser(cfg *config.Config, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUserID(c)
		if err != nil {
			redirectToLogin(c, cfg)
			return
		}
		id, err := strconv.ParseUint(userID, 10, 64)
		if err != nil {
			redirectToLogin(c, cfg)
			return
		}

		user, err := users.Get(c.Request.Context(), uint(id))
		if err != nil {
			zap.L().Info("session user not found", zap.String("user_id", userID), zap.Error(err))
			redirectToLogin(c, cfg)
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// RequireStaff lets staff and superusers through.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetCurrentUser(c)
		if err != nil || !user.CanManage() {
			denyAccess(c)
			return
		}
		c.Next()
	}
}

// RequireSuperuser lets superusers through.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := GetCurrentUser(c)
		if err != nil || !user.IsSuperuser {
			denyAccess(c)
			return
		}
		c.Next()
	}
}

// SetCurrentUser stores user in the context (primarily for testing)
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(userIDKey, strconv.FormatUint(uint64(user.ID), 10))
	c.Set(currentUserKey, user)
}

// GetCurrentUser returns the user loaded by LoadCurrentUser
func GetCurrentUser(c *gin.Context) (*models.User, error) {
	v, exists := c.Get(currentUserKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_USER", Message: "User not found in context"}
	}
	user, ok := v.(*models.User)
	if !ok || user == nil {
		return nil, &AuthError{Code: "INVALID_USER", Message: "User is not in the expected format"}
	}
	return user, nil
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(claimsKey)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// SetSessionCookie stores token in the session cookie. A zero maxAge makes
// it a browser-session cookie.
func SetSessionCookie(c *gin.Context, cfg *config.Config, token string, maxAge time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(maxAge.Seconds()), "/", "", cfg.CookieSecure, true)
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(c *gin.Context, cfg *config.Config) {
	http.SetCookie(c.Writer, expiredSessionCookie(cfg))
}

// LoginURL returns the login page URL that returns to next afterwards.
func LoginURL(next string) string {
	if next == "" || next == "/" {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

func expiredSessionCookie(cfg *config.Config) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func redirectToLogin(c *gin.Context, cfg *config.Config) {
	ClearSessionCookie(c, cfg)
	c.Redirect(http.StatusFound, LoginURL(c.Request.URL.RequestURI()))
	c.Abort()
}

func denyAccess(c *gin.Context) {
	SetFlash(c, FlashError, permissionDenied)
	c.Redirect(http.StatusFound, "/")
	c.Abort()
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
