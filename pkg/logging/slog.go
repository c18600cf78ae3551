// Package logging builds the engine's structured loggers: one slog.Logger
// per process, tagged per component, with optional match/agent context
// picked up from a request-scoped context.Context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the engine's slog-compatible logging configuration, loaded as
// part of EngineConfig.
type Config struct {
	Level    string       `yaml:"level"`  // debug, info, warn, error
	Format   string       `yaml:"format"` // json, text
	Output   string       `yaml:"output"` // stdout, stderr, file, journald
	File     *LogFile     `yaml:"file,omitempty"`
	Journald *LogJournald `yaml:"journald,omitempty"`
}

// LogFile configures rotation when Output is "file".
type LogFile struct {
	Directory string `yaml:"directory"`
	Filename  string `yaml:"filename"`
	MaxSize   string `yaml:"max_size"`
	MaxFiles  int    `yaml:"max_files"`
	MaxAge    string `yaml:"max_age"`
	Compress  bool   `yaml:"compress"`
}

// LogJournald configures journald output when Output is "journald".
type LogJournald struct {
	Identifier string            `yaml:"identifier"`
	Fields     map[string]string `yaml:"fields"`
}

// NewLogger builds a slog.Logger for serviceName from config.
func NewLogger(serviceName string, config Config) *slog.Logger {
	level := parseLogLevel(config.Level)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	writer := createWriter(config)

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	logger := slog.New(handler)
	return logger.With("service", serviceName)
}

// NewLoggerBasic builds a logger from individual config fields, for callers
// that only carry level/format/output rather than a full Config (e.g. a
// flag-parsed entrypoint before the rest of EngineConfig is assembled).
func NewLoggerBasic(serviceName, level, format, output string) *slog.Logger {
	config := Config{
		Level:  level,
		Format: format,
		Output: output,
	}
	return NewLogger(serviceName, config)
}

// ComponentLogger tags an existing logger with the engine component it
// belongs to (scheduler, sandbox, store, reporter, workspace, ...), so
// main.go builds one logger from config and hands every constructor its
// own component-scoped view of it instead of re-parsing Config per caller.
func ComponentLogger(base *slog.Logger, component string) *slog.Logger {
	return base.With("component", component)
}

type contextKey string

const (
	matchIDKey contextKey = "match_id"
	agentIDKey contextKey = "agent_id"
	gameIDKey  contextKey = "game_id"
	refereeKey contextKey = "referee"
)

// WithMatch returns a context carrying the identifiers a match-scoped
// logger should print on every line for the lifetime of that match.
func WithMatch(ctx context.Context, matchID, gameID, referee string) context.Context {
	ctx = context.WithValue(ctx, matchIDKey, matchID)
	ctx = context.WithValue(ctx, gameIDKey, gameID)
	return context.WithValue(ctx, refereeKey, referee)
}

// WithAgent returns a context carrying a single agent identifier, for
// logging inside one agent's code path (internal/submission's background
// prepare step).
func WithAgent(ctx context.Context, agentID string) context.Context {
	return context.WithValue(ctx, agentIDKey, agentID)
}

// ContextLogger attaches whatever match/agent identifiers ctx carries to
// logger, so a single runMatch call can log consistently tagged lines from
// several different functions without threading extra parameters through
// each of them.
func ContextLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if matchID, ok := ctx.Value(matchIDKey).(string); ok {
		logger = logger.With("match_id", matchID)
	}
	if gameID, ok := ctx.Value(gameIDKey).(string); ok {
		logger = logger.With("game_id", gameID)
	}
	if referee, ok := ctx.Value(refereeKey).(string); ok {
		logger = logger.With("referee", referee)
	}
	if agentID, ok := ctx.Value(agentIDKey).(string); ok {
		logger = logger.With("agent_id", agentID)
	}
	return logger
}

// parseLogLevel converts a config string to a slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// createWriter resolves the configured output target to an io.Writer.
func createWriter(config Config) io.Writer {
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	case "file":
		if config.File == nil {
			fmt.Fprintf(os.Stderr, "Warning: File configuration missing, falling back to stdout\n")
			return os.Stdout
		}
		writer, err := createFileWriter(config.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to create file writer (%v), falling back to stdout\n", err)
			return os.Stdout
		}
		return writer
	case "journald":
		if config.Journald == nil {
			fmt.Fprintf(os.Stderr, "Warning: Journald configuration missing, falling back to stdout\n")
			return os.Stdout
		}
		return createJournaldWriter(config.Journald)
	default:
		fmt.Fprintf(os.Stderr, "Warning: Unknown output type '%s', falling back to stdout\n", config.Output)
		return os.Stdout
	}
}

// createFileWriter builds a lumberjack-backed rotating writer for the
// engine's match/sandbox logs.
func createFileWriter(config *LogFile) (io.Writer, error) {
	if err := os.MkdirAll(config.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	maxSize, err := parseSize(config.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("invalid max_size: %w", err)
	}

	maxAge, err := parseAge(config.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("invalid max_age: %w", err)
	}

	filename := filepath.Join(config.Directory, config.Filename)

	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSize,
		MaxBackups: config.MaxFiles,
		MaxAge:     maxAge,
		Compress:   config.Compress,
	}, nil
}

// createJournaldWriter falls back to plain stdout, since a real journald
// sink needs systemd bindings this engine does not depend on. The
// configured identifier only appears in the one-line notice it prints.
func createJournaldWriter(config *LogJournald) io.Writer {
	fmt.Fprintf(os.Stderr, "Info: Journald logging requested (identifier: %s), using stdout for compatibility\n", config.Identifier)
	return os.Stdout
}

// parseSize converts a "512MB"/"2GB"-shaped string to megabytes.
func parseSize(sizeStr string) (int, error) {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))

	if strings.HasSuffix(sizeStr, "MB") {
		sizeStr = strings.TrimSuffix(sizeStr, "MB")
		var size int
		_, err := fmt.Sscanf(sizeStr, "%d", &size)
		return size, err
	}

	if strings.HasSuffix(sizeStr, "GB") {
		sizeStr = strings.TrimSuffix(sizeStr, "GB")
		var size int
		_, err := fmt.Sscanf(sizeStr, "%d", &size)
		return size * 1024, err
	}

	var size int
	_, err := fmt.Sscanf(sizeStr, "%d", &size)
	return size, err
}

// parseAge converts a "30d"/"30days"-shaped string to days.
func parseAge(ageStr string) (int, error) {
	ageStr = strings.ToLower(strings.TrimSpace(ageStr))

	if strings.HasSuffix(ageStr, "d") {
		ageStr = strings.TrimSuffix(ageStr, "d")
		var age int
		_, err := fmt.Sscanf(ageStr, "%d", &age)
		return age, err
	}

	if strings.HasSuffix(ageStr, "days") {
		ageStr = strings.TrimSuffix(ageStr, "days")
		var age int
		_, err := fmt.Sscanf(ageStr, "%d", &age)
		return age, err
	}

	var age int
	_, err := fmt.Sscanf(ageStr, "%d", &age)
	return age, err
}
