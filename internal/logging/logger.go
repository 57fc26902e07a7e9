// Package logging provides structured logging with file and console output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents logging levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration
type Config struct {
	LogDir  string   // Directory for log files (default: ~/.musekit/logs)
	Level   LogLevel // Minimum log level (default: info)
	Console bool     // Also log to console (default: true)
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		LogDir:  filepath.Join(home, ".musekit", "logs"),
		Level:   LevelInfo,
		Console: true,
	}
}

// Logger wraps zerolog with a file sink and component sub-loggers.
type Logger struct {
	zlog    zerolog.Logger
	file    *os.File
	logPath string
}

// New creates a new Logger with file and console output
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := fmt.Sprintf("musekit_%s.log", time.Now().Format("2006-01-02"))
	logPath := filepath.Join(cfg.LogDir, logFileName)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var writers []io.Writer
	writers = append(writers, file)

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
	}

	level := zerolog.InfoLevel
	switch cfg.Level {
	case LevelDebug:
		level = zerolog.DebugLevel
	case LevelWarn:
		level = zerolog.WarnLevel
	case LevelError:
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	zlog := zerolog.New(io.MultiWriter(writers...)).With().
		Timestamp().
		Str("app", "musekit").
		Logger()

	logger := &Logger{
		zlog:    zlog,
		file:    file,
		logPath: logPath,
	}

	logger.zlog.Info().Str("logFile", logPath).Str("level", string(cfg.Level)).Msg("Logger initialized")
	return logger, nil
}

// Component returns a zerolog.Logger with the component field set.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// Zerolog returns the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return l.logPath
}

// Close closes the log file
func (l *Logger) Close() error {
	l.zlog.Info().Msg("Logger shutting down")
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
