package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/stitchflow-website/dirsync/internal/config"
)

// envConfig reads DIRSYNC_-prefixed environment variables
func envConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// getLogLevel parses DIRSYNC_LOG_LEVEL, falling back to LOG_LEVEL.
// Defaults to slog.LevelInfo if neither is set or if the value is invalid.
func getLogLevel() slog.Level {
	levelStr := envConfig().GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}
	return parseLogLevel(levelStr)
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

// getLogFile returns DIRSYNC_LOG_FILE, an optional second log destination
func getLogFile() string {
	return envConfig().GetString("LOG_FILE")
}

// newLogger builds the process logger: JSON to stderr and, when logFile is set,
// JSON appended to that file as well. Every record carries the active trace and span ids.
func newLogger(stderr io.Writer, level slog.Leveler, logFile string) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: level}
	stderrHandler := slog.NewJSONHandler(stderr, opts)
	noClose := func() error { return nil }

	if logFile == "" {
		return slog.New(&traceHandler{Handler: stderrHandler}), noClose
	}

	file, err := os.OpenFile(filepath.Clean(logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logger := slog.New(&traceHandler{Handler: stderrHandler})
		logger.Error("Failed to open log file, logging to stderr only", "file", logFile, "error", err)
		return logger, noClose
	}

	fileHandler := slog.NewJSONHandler(file, opts)
	handler := &traceHandler{Handler: slogmulti.Fanout(stderrHandler, fileHandler)}
	return slog.New(handler), file.Close
}

// traceHandler wraps an slog.Handler to inject the OpenTelemetry trace_id and
// span_id of the record's context, so logs of a stage correlate with its spans.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		r.AddAttrs(
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.String("span_id", span.SpanContext().SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}
