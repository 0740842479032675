package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps a zerolog.Logger so call sites pass fields as plain maps.
type Logger struct {
	zl zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json, console
	Output      io.Writer
	EnableColor bool
}

var globalLogger *Logger

// Initialize sets up the global logger. Safe to call more than once; the
// last call wins.
func Initialize(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    !cfg.EnableColor,
		}
	}

	zl := zerolog.New(out).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	globalLogger = &Logger{zl: zl}
	log.Logger = zl
}

// Get returns the global logger, initializing a default one on first use.
func Get() *Logger {
	if globalLogger == nil {
		Initialize(Config{Level: "info", Format: "console", EnableColor: true})
	}
	return globalLogger
}

// WithContext returns a derived logger carrying the given fields on every
// entry it writes.
func (l *Logger) WithContext(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger()}
}

func withFields(ev *zerolog.Event, fields []map[string]interface{}) *zerolog.Event {
	if len(fields) == 0 {
		return ev
	}
	for k, v := range fields[0] {
		ev = ev.Interface(k, v)
	}
	return ev
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	withFields(l.zl.Debug(), fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	withFields(l.zl.Info(), fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	withFields(l.zl.Warn(), fields).Msg(msg)
}

func (l *Logger) Error(msg string, err error, fields ...map[string]interface{}) {
	withFields(l.zl.Error().Err(err), fields).Msg(msg)
}

func (l *Logger) Fatal(msg string, err error, fields ...map[string]interface{}) {
	withFields(l.zl.Fatal().Err(err), fields).Msg(msg)
}

// Package-level shortcuts against the global logger. They write through the
// zerolog instance directly so caller attribution matches the methods above.

func Debug(msg string, fields ...map[string]interface{}) {
	withFields(Get().zl.Debug(), fields).Msg(msg)
}

func Info(msg string, fields ...map[string]interface{}) {
	withFields(Get().zl.Info(), fields).Msg(msg)
}

func Warn(msg string, fields ...map[string]interface{}) {
	withFields(Get().zl.Warn(), fields).Msg(msg)
}

func Error(msg string, err error, fields ...map[string]interface{}) {
	withFields(Get().zl.Error().Err(err), fields).Msg(msg)
}

func Fatal(msg string, err error, fields ...map[string]interface{}) {
	withFields(Get().zl.Fatal().Err(err), fields).Msg(msg)
}

// WithContext derives a field-carrying logger from the global one.
func WithContext(fields map[string]interface{}) *Logger {
	return Get().WithContext(fields)
}
