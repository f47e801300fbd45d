package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// pure-Go driver registered as "sqlite"
	_ "modernc.org/sqlite"
)

var DB *gorm.DB

// ConnectDatabase opens the database named by cfg.DatabaseURL. PostgreSQL
// URLs use the pgx-backed driver, anything else is treated as a SQLite file.
func ConnectDatabase(cfg *Config) error {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(cfg)),
	}

	var err error
	if IsPostgresURL(cfg.DatabaseURL) {
		zap.L().Info("connecting to PostgreSQL")
		DB, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	} else {
		zap.L().Info("using SQLite database", zap.String("dsn", cfg.DatabaseURL))
		DB, err = gorm.Open(gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        cfg.DatabaseURL,
		}), gormCfg)
		if err == nil {
			// SQLite allows a single writer.
			if sqlDB, dbErr := DB.DB(); dbErr == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	zap.L().Info("database connection established")
	return nil
}

// IsPostgresURL reports whether dsn points at a PostgreSQL server.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}

func gormLogLevel(cfg *Config) gormlogger.LogLevel {
	if cfg.IsTest() {
		return gormlogger.Silent
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
