package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRegister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.Register(ctx, RegisterInput{
		Username:        " nico.surf ",
		Password:        "olas-grandes-2026",
		PasswordConfirm: "olas-grandes-2026",
	})
	require.NoError(t, err)
	assert.Equal(t, "nico.surf", user.Username)
	assert.False(t, user.IsStaff)
	assert.False(t, user.IsSuperuser)
	assert.NotEqual(t, "olas-grandes-2026", user.PasswordHash)

	_, err = env.users.Register(ctx, RegisterInput{
		Username:        "nico.surf",
		Password:        "otra-clave-segura",
		PasswordConfirm: "otra-clave-segura",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUserRegisterValidation(t *testing.T) {
	tests := []struct {
		name      string
		input     RegisterInput
		wantField string
	}{
		{
			name:      "empty username",
			input:     RegisterInput{Password: "clave-segura", PasswordConfirm: "clave-segura"},
			wantField: "username",
		},
		{
			name:      "username with spaces",
			input:     RegisterInput{Username: "nico surf", Password: "clave-segura", PasswordConfirm: "clave-segura"},
			wantField: "username",
		},
		{
			name:      "short password",
			input:     RegisterInput{Username: "nico", Password: "corta", PasswordConfirm: "corta"},
			wantField: "password",
		},
		{
			name:      "numeric password",
			input:     RegisterInput{Username: "nico", Password: "12345678", PasswordConfirm: "12345678"},
			wantField: "password",
		},
		{
			name:      "mismatched confirmation",
			input:     RegisterInput{Username: "nico", Password: "clave-segura", PasswordConfirm: "clave-distinta"},
			wantField: "password_confirm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.users.Register(context.Background(), tt.input)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.wantField)
		})
	}
}

func TestUserCreateAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff, err := env.users.CreateAdmin(ctx, "taller", "clave-del-taller", false)
	require.NoError(t, err)
	assert.True(t, staff.IsStaff)
	assert.False(t, staff.IsSuperuser)
	assert.Equal(t, models.RoleStaff, staff.Role())

	admin, err := env.users.CreateAdmin(ctx, "admin", "clave-del-admin", true)
	require.NoError(t, err)
	assert.True(t, admin.IsSuperuser)
	assert.Equal(t, models.RoleSuperuser, admin.Role())

	_, err = env.users.CreateAdmin(ctx, "admin", "clave-del-admin", true)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = env.users.CreateAdmin(ctx, "otro", "123", true)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestUserAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.users.Register(ctx, RegisterInput{
		Username: "lucia", Password: "kite-en-el-lago", PasswordConfirm: "kite-en-el-lago",
	})
	require.NoError(t, err)
	assert.Nil(t, registered.LastLoginAt)

	user, err := env.users.Authenticate(ctx, "lucia", "kite-en-el-lago")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotNil(t, user.LastLoginAt)

	_, err = env.users.Authenticate(ctx, "lucia", "otra-clave")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.users.Authenticate(ctx, "nadie", "kite-en-el-lago")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	seeded := testutil.CreateUser(t, env.db, "sin-clave", false, false)
	_, err = env.users.Authenticate(ctx, seeded.Username, "!")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unusable hashes never match")
}

func TestUserGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seeded := testutil.CreateUser(t, env.db, "ana", false, false)

	user, err := env.users.Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)

	_, err = env.users.Get(ctx, seeded.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "gorm duplicated key", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "postgres unique violation", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "postgres other error", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "sqlite unique constraint", err: errors.New("constraint failed: UNIQUE constraint failed: users.username (2067)"), want: true},
		{name: "unrelated", err: errors.New("connection refused"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}
