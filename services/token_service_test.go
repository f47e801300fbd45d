package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	appConfig "github.com/kendall-kelly/taller-reparaciones/config"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenConfig() *appConfig.Config {
	return &appConfig.Config{
		JWTSecret:   "test-secret",
		JWTIssuer:   "taller-test",
		JWTAudience: "taller-web-test",
		SessionTTL:  2 * time.Hour,
	}
}

func TestTokenServiceIssue(t *testing.T) {
	svc := NewTokenService(testTokenConfig())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	user := models.User{ID: 42, Username: "taller", IsStaff: true}
	token, expiresAt, err := svc.Issue(user)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(2*time.Hour), expiresAt)
	assert.Equal(t, 2*time.Hour, svc.TTL())

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return fixed.Add(time.Minute) }),
		jwt.WithIssuer("taller-test"),
		jwt.WithAudience("taller-web-test"),
	)
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "taller", claims.Username)
	assert.Equal(t, models.RoleStaff, claims.Role)
}

func TestTokenServiceRejectsWrongSecret(t *testing.T) {
	svc := NewTokenService(testTokenConfig())
	token, _, err := svc.Issue(models.User{ID: 1, Username: "ana"})
	require.NoError(t, err)

	_, err = jwt.ParseWithClaims(token, &SessionClaims{}, func(tok *jwt.Token) (interface{}, error) {
		return []byte("other-secret"), nil
	})
	assert.ErrorIs(t, err, jwt.ErrSignatureInvalid)
}

func TestTokenServiceExpiry(t *testing.T) {
	svc := NewTokenService(testTokenConfig())
	past := time.Now().Add(-3 * time.Hour)
	svc.now = func() time.Time { return past }

	token, _, err := svc.Issue(models.User{ID: 1, Username: "ana"})
	require.NoError(t, err)

	_, err = jwt.ParseWithClaims(token, &SessionClaims{}, func(tok *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
