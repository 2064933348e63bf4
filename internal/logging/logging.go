// Package logging builds the zap logger shared by the CLI and the store.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, encoder and optional file sink.
type Config struct {
	Level string `yaml:"log_level" mapstructure:"log_level"`
	Dev   bool   `yaml:"log_dev" mapstructure:"log_dev"`

	// File, when set, also writes JSON logs to File.YYYYMMDD with File as a
	// link to the current one.
	File         string        `yaml:"log_file" mapstructure:"log_file"`
	MaxAge       time.Duration `yaml:"log_max_age" mapstructure:"log_max_age"`
	RotationTime time.Duration `yaml:"log_rotation_time" mapstructure:"log_rotation_time"`
}

// Rotation defaults.
const (
	DefaultMaxAge       = 7 * 24 * time.Hour
	DefaultRotationTime = 24 * time.Hour
)

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a logger from cfg. The returned close function flushes the
// logger and releases the file sink; it is safe to call when no file is
// configured.
func New(cfg Config) (*zap.Logger, func() error, error) {
	lvl := levelFromString(cfg.Level)

	var console zapcore.Encoder
	if cfg.Dev {
		console = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		console = zapcore.NewJSONEncoder(encoderConfig())
	}
	cores := []zapcore.Core{zapcore.NewCore(console, zapcore.Lock(os.Stderr), lvl)}

	var sink io.Closer
	if cfg.File != "" {
		rl, err := rotatingFile(cfg)
		if err != nil {
			return nil, nil, err
		}
		sink = rl
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rl), lvl))
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Dev {
		opts = append(opts, zap.Development())
	}
	logger := zap.New(zapcore.NewTee(cores...), opts...)

	closeFn := func() error {
		// Sync on stderr fails on some platforms; ignore it.
		_ = logger.Sync()
		if sink != nil {
			return sink.Close()
		}
		return nil
	}
	return logger, closeFn, nil
}

func encoderConfig() zapcore.EncoderConfig {
	c := zap.NewProductionEncoderConfig()
	c.EncodeTime = zapcore.ISO8601TimeEncoder
	return c
}

func rotatingFile(cfg Config) (*rotatelogs.RotateLogs, error) {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	rotation := cfg.RotationTime
	if rotation <= 0 {
		rotation = DefaultRotationTime
	}
	rl, err := rotatelogs.New(
		cfg.File+".%Y%m%d",
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotation),
	)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", cfg.File, err)
	}
	return rl, nil
}
