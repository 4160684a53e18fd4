// Package logger builds the service logger and carries request-scoped loggers in contexts.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kailas-cloud/cypherrag/internal/version"
)

const serviceName = "cypherrag"

// NewLogger creates a zap logger for env.
// prod writes JSON with ISO8601 timestamps; local, dev, docker and test write colored console output.
// level, when non-empty, overrides the environment default: debug, info, warn, error.
func NewLogger(env string, level ...string) (*zap.Logger, error) {
	cfg, err := configFor(env)
	if err != nil {
		return nil, err
	}

	if len(level) > 0 && level[0] != "" {
		lvl, err := zapcore.ParseLevel(level[0])
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level[0], err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", serviceName), zap.String("version", version.Version)),
	)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func configFor(env string) (zap.Config, error) {
	switch env {
	case "prod":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg, nil
	case "local", "dev", "docker", "test":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg, nil
	default:
		return zap.Config{}, fmt.Errorf("unknown environment %q for logger", env)
	}
}
