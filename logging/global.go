// Package logging wraps log/slog with a console plus weekly rotating file setup
// and package-level helpers usable before initialisation.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type LoggingService struct {
	Logger *slog.Logger
	closer io.Closer
}

var (
	DefaultLoggingService *LoggingService
	mu                    sync.RWMutex
)

// InitLogger initializes the global logger instance and makes it the slog default.
func InitLogger(opts Options) {
	logger, closer := Setup(opts)
	mu.Lock()
	DefaultLoggingService = &LoggingService{Logger: logger, closer: closer}
	mu.Unlock()
	slog.SetDefault(logger)
}

// Close releases the rotating file of the global logger.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if DefaultLoggingService == nil || DefaultLoggingService.closer == nil {
		return nil
	}
	err := DefaultLoggingService.closer.Close()
	DefaultLoggingService.closer = nil
	return err
}

// ParseLevel maps a LOG_LEVEL value to a slog level, info when unknown.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger returns the global logger, or a stderr fallback when not initialised.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return DefaultLoggingService.Logger
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}
