package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kendall-kelly/taller-reparaciones/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}@.+\-_]{1,150}$`)

var (
	dummyHashOnce  sync.Once
	dummyHashValue []byte
)

func dummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHashValue, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	return dummyHashValue
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Username        string
	Password        string
	PasswordConfirm string
}

// UserService manages accounts and credentials.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Register creates a customer account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)

	verr := &ValidationError{}
	if !usernamePattern.MatchString(in.Username) {
		verr.add("username", "Usá hasta 150 caracteres: letras, números y @/./+/-/_ solamente.")
	}
	if msg := passwordProblem(in.Password); msg != "" {
		verr.add("password", msg)
	}
	if in.Password != in.PasswordConfirm {
		verr.add("password_confirm", "Las contraseñas no coinciden.")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	return s.create(ctx, in.Username, in.Password, false, false)
}

// CreateAdmin creates a staff account, optionally a superuser.
func (s *UserService) CreateAdmin(ctx context.Context, username, password string, superuser bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, &ValidationError{Fields: map[string]string{"username": "nombre de usuario inválido"}}
	}
	if msg := passwordProblem(password); msg != "" {
		return nil, &ValidationError{Fields: map[string]string{"password": msg}}
	}
	return s.create(ctx, username, password, true, superuser)
}

func (s *UserService) create(ctx context.Context, username, password string, staff, superuser bool) (*models.User, error) {
	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
		IsStaff:      staff,
		IsSuperuser:  superuser,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// Authenticate checks credentials and stamps the login time.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLoginAt = &now
	return &user, nil
}

// Get loads a user by ID.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func passwordProblem(password string) string {
	if len([]rune(password)) < minPasswordLength {
		return fmt.Sprintf("La contraseña debe tener al menos %d caracteres.", minPasswordLength)
	}
	if strings.Trim(password, "0123456789") == "" {
		return "La contraseña no puede ser solamente numérica."
	}
	return ""
}

// isUniqueViolation detects duplicate-key errors from PostgreSQL and SQLite.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "SQLSTATE 23505")
}
