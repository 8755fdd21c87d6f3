package logger

import (
	"strings"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// FromAppConfig converts the application log section
func FromAppConfig(cfg config.LogConfig) *Config {
	return &Config{Level: cfg.Level, Format: cfg.Format, Output: cfg.Output}
}

// New builds the process logger. Errors and above carry a stack trace.
func New(cfg *Config) (*zap.Logger, error) {
	output := cfg.Output
	if output == "" {
		output = "stdout"
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Encoding:         "json",
		EncoderConfig:    encoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zcfg.Build()
}

// parseLevel falls back to info for anything it does not recognise
func parseLevel(level string) zapcore.Level {
	level = strings.ToLower(level)
	if level == "warning" {
		return zapcore.WarnLevel
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	return ec
}
