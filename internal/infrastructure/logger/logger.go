package logger

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string
	// Service is attached to every entry as the "service" field when set.
	Service string
}

func (c *Config) withDefaults() Config {
	out := Config{Level: "info", Format: "console", Output: "stdout", TimeFormat: defaultTimeFormat}
	if c == nil {
		return out
	}
	out.Service = c.Service
	for dst, src := range map[*string]string{
		&out.Level:      c.Level,
		&out.Format:     c.Format,
		&out.Output:     c.Output,
		&out.TimeFormat: c.TimeFormat,
	} {
		if src != "" {
			*dst = src
		}
	}
	return out
}

// New builds a zap logger writing to cfg.Output. Extra cores, such as the
// OpenTelemetry bridge, receive the same entries.
func New(cfg *Config, extra ...zapcore.Core) (*zap.Logger, error) {
	c := cfg.withDefaults()

	sink, _, err := zap.Open(c.Output)
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", c.Output, err)
	}

	cores := append([]zapcore.Core{zapcore.NewCore(encoder(c), sink, ParseLevel(c.Level))}, extra...)
	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if c.Service != "" {
		log = log.With(zap.String("service", c.Service))
	}
	return log, nil
}

// ParseLevel converts a level name to a zapcore.Level. Unknown names map
// to info.
func ParseLevel(name string) zapcore.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func encoder(c Config) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(c.TimeFormat)
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if strings.EqualFold(c.Format, "console") {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// Component returns a named child logger for a subsystem (scheduler,
// marketplace, jobqueue...).
func Component(log *zap.Logger, name string) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log.Named(name)
}

// Sync flushes buffered entries. Terminals and pipes reject fsync; that
// error is dropped.
func Sync(log *zap.Logger) error {
	err := log.Sync()
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
		return nil
	}
	return err
}
