package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. LOG_FORMAT=json or console
// overrides the default, which is JSON in production and console elsewhere.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	var zc zap.Config
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		if cfg.IsProduction() {
			zc = zap.NewProductionConfig()
		} else {
			zc = zap.NewDevelopmentConfig()
		}
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(zap.String("env", cfg.GoEnv)), nil
}
