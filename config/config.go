package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"

	devJWTSecret = "dev-only-insecure-secret-change-me"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL string
	Port        string
	GoEnv       string
	LogLevel    string
	LogFormat   string

	JWTSecret    string
	JWTIssuer    string
	JWTAudience  string
	SessionTTL   time.Duration
	CookieSecure bool

	StorageBackend     string
	UploadDir          string
	AWSRegion          string
	AWSS3Bucket        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Endpoint         string

	DynamoDBTable    string
	DynamoDBEndpoint string

	MercadoPagoAccessToken string
	PaymentGatewayMock     bool
	DepositPercent         float64
	PublicBaseURL          string

	MaxImageMB    int64
	MaxVideoMB    int64
	MaxDocumentMB int64

	CORSAllowedOrigins []string

	// EnvFile is the dotenv file the values were read from, empty when only
	// the process environment was used.
	EnvFile string
}

var current *Config

// Load loads the configuration from environment variables
// It automatically determines which .env file to load based on GO_ENV
func Load() (*Config, error) {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}

	// Environment-specific file first, then .env. On hosted deployments the
	// variables come straight from the process environment.
	loaded := ""
	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err == nil {
		loaded = envFile
	} else if err := godotenv.Load(); err == nil {
		loaded = ".env"
	}

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		GoEnv:       getEnv("GO_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", ""),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTIssuer:    getEnv("JWT_ISSUER", "taller-reparaciones"),
		JWTAudience:  getEnv("JWT_AUDIENCE", "taller-web"),
		SessionTTL:   time.Duration(getEnvInt("SESSION_TTL_HOURS", 24*14)) * time.Hour,
		CookieSecure: getEnvBool("COOKIE_SECURE", false),

		StorageBackend:     strings.ToLower(getEnv("STORAGE_BACKEND", StorageLocal)),
		UploadDir:          getEnv("UPLOAD_DIR", "./media"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSS3Bucket:        getEnv("AWS_S3_BUCKET", ""),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),

		DynamoDBTable:    getEnv("DYNAMODB_TABLE", ""),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),

		MercadoPagoAccessToken: getEnv("MERCADOPAGO_ACCESS_TOKEN", ""),
		PaymentGatewayMock:     getEnvBool("PAYMENT_GATEWAY_MOCK", false),
		DepositPercent:         getEnvFloat("DEPOSIT_PERCENT", 50),
		PublicBaseURL:          strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		MaxImageMB:    int64(getEnvInt("MAX_IMAGE_MB", 10)),
		MaxVideoMB:    int64(getEnvInt("MAX_VIDEO_MB", 150)),
		MaxDocumentMB: int64(getEnvInt("MAX_DOCUMENT_MB", 20)),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		EnvFile: loaded,
	}

	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	current = cfg
	return cfg, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.IsProduction() && c.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be changed in production")
	}
	switch c.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if c.AWSS3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.DepositPercent < 0 || c.DepositPercent > 100 {
		return fmt.Errorf("DEPOSIT_PERCENT must be between 0 and 100")
	}
	if c.MaxImageMB <= 0 || c.MaxVideoMB <= 0 || c.MaxDocumentMB <= 0 {
		return fmt.Errorf("upload limits must be positive")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// IsTest returns true if the application is running in test mode
func (c *Config) IsTest() bool {
	return c.GoEnv == "test"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// PaymentsEnabled reports whether deposit checkout links should be generated.
func (c *Config) PaymentsEnabled() bool {
	return c.PaymentGatewayMock || c.MercadoPagoAccessToken != ""
}

// GetConfig returns the configuration loaded last, or nil.
func GetConfig() *Config {
	return current
}

// SetConfig replaces the active configuration (primarily for testing)
func SetConfig(cfg *Config) {
	current = cfg
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
