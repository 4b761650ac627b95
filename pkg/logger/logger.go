// Package logger wraps zerolog with the process-wide singleton, stage-aware
// field chaining, and context carrier the pipeline's stages and HTTP layer
// share: every component logs through a WithComponent/WithTask/WithStage
// child rather than touching zerolog directly.
package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps a configured zerolog.Logger.
type Logger struct {
	logger zerolog.Logger
}

// Config controls the global logger's level, encoding, and destination.
type Config struct {
	Level      string `yaml:"level" mapstructure:"level"`             // debug, info, warn, error
	Format     string `yaml:"format" mapstructure:"format"`           // json, console
	Output     string `yaml:"output" mapstructure:"output"`           // stdout, stderr, file path
	Timestamp  bool   `yaml:"timestamp" mapstructure:"timestamp"`     // include timestamp
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // include caller info
	PrettyMode bool   `yaml:"pretty_mode" mapstructure:"pretty_mode"` // enable colorized console output
}

// DefaultConfig returns the configuration a production worker process
// starts with: structured JSON to stdout, no caller frames. Operators
// running the binary interactively override Format to "console" for
// readability.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		Timestamp:  true,
		Caller:     false,
		PrettyMode: false,
	}
}

var globalLogger *Logger

// Initialize configures the global logger. A nil config falls back to
// DefaultConfig.
func Initialize(config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output, err := resolveOutput(config.Output)
	if err != nil {
		return err
	}

	base := buildBaseLogger(config, output)

	if config.Timestamp {
		base = base.With().Timestamp().Logger()
	}
	if config.Caller {
		base = base.With().Caller().Logger()
	}

	globalLogger = &Logger{logger: base}
	log.Logger = base

	return nil
}

func resolveOutput(target string) (io.Writer, error) {
	switch strings.ToLower(target) {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		return os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	}
}

func buildBaseLogger(config *Config, output io.Writer) zerolog.Logger {
	if config.Format != "console" {
		return zerolog.New(output)
	}

	writer := zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.RFC3339,
		NoColor:    !config.PrettyMode,
	}
	return zerolog.New(writer)
}

// Get returns the global logger, initializing it with defaults on first
// use if Initialize was never called.
func Get() *Logger {
	if globalLogger == nil {
		_ = Initialize(nil)
	}
	return globalLogger
}

// WithContext binds ctx to the logger so zerolog's hooks can read
// request-scoped values through it.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{logger: l.logger.With().Ctx(ctx).Logger()}
}

// WithField adds a single structured field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithFields adds multiple structured fields at once.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger()}
}

// WithComponent tags the logger with the subsystem emitting the record
// (downloader, splitter, transcriber, merger, worker-pool, httpapi, ...).
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", component).Logger()}
}

// WithTask tags the logger with the task id the following records
// describe, so a task's log lines can be grepped end to end.
func (l *Logger) WithTask(taskID string) *Logger {
	return &Logger{logger: l.logger.With().Str("task_id", taskID).Logger()}
}

// WithStage tags the logger with the pipeline stage (downloading,
// splitting, transcribing, merging) currently executing.
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{logger: l.logger.With().Str("stage", stage).Logger()}
}

// WithError adds an error field, or returns l unchanged if err is nil.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.logger.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }
func (l *Logger) Fatal() *zerolog.Event { return l.logger.Fatal() }
func (l *Logger) Panic() *zerolog.Event { return l.logger.Panic() }

// GetLevel returns the logger's active level.
func (l *Logger) GetLevel() zerolog.Level {
	return l.logger.GetLevel()
}

// Package-level convenience functions delegate to the global logger.

func Debug() *zerolog.Event { return Get().Debug() }
func Info() *zerolog.Event  { return Get().Info() }
func Warn() *zerolog.Event  { return Get().Warn() }
func Error() *zerolog.Event { return Get().Error() }
func Fatal() *zerolog.Event { return Get().Fatal() }
func Panic() *zerolog.Event { return Get().Panic() }

func WithComponent(component string) *Logger { return Get().WithComponent(component) }
func WithTask(taskID string) *Logger         { return Get().WithTask(taskID) }
func WithStage(stage string) *Logger         { return Get().WithStage(stage) }
func WithError(err error) *Logger            { return Get().WithError(err) }
func WithField(key string, value interface{}) *Logger {
	return Get().WithField(key, value)
}
func WithFields(fields map[string]interface{}) *Logger {
	return Get().WithFields(fields)
}
