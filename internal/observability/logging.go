// Package observability carries the ambient concerns of the module:
// structured logging over zap and OpenTelemetry tracing setup.
package observability

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/virtend/virtend/internal/util"
)

// Logger is the structured logging interface every component accepts.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
	Sync() error
}

// Field is a structured log field.
type Field = zap.Field

// Field constructors, re-exported so callers need no zap import.
var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Uint64   = zap.Uint64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Error    = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
	Time     = zap.Time
)

// LogConfig selects level, encoding, and destination.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
	Output string // stdout or stderr
}

// DefaultLogConfig is info-level JSON on stdout.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "json", Output: "stdout"}
}

// NewLogger builds a zap-backed logger from cfg.
func NewLogger(cfg LogConfig) (Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	zcfg.EncoderConfig.TimeKey = "timestamp"
	zcfg.EncoderConfig.MessageKey = "message"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	if cfg.Format == "console" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if cfg.Output == "stderr" {
		zcfg.OutputPaths = []string{"stderr"}
	}

	zl, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &zapLogger{zl: zl}, nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return &zapLogger{zl: zap.NewNop()}
}

type zapLogger struct {
	zl *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field)  { l.zl.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field)  { l.zl.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.zl.Error(msg, fields...) }
func (l *zapLogger) Sync() error                       { return l.zl.Sync() }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{zl: l.zl.With(fields...)}
}

// WithContext enriches the logger with what the context knows about the
// request: its id, the endpoint that claimed it, and the active trace
// and span ids when a span is recording. Without any of those the same
// logger comes back.
func (l *zapLogger) WithContext(ctx context.Context) Logger {
	var fields []Field
	if id := util.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, String("request_id", id))
	}
	if ep := util.EndpointFromContext(ctx); ep != "" {
		fields = append(fields, String("endpoint", ep))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			String("trace_id", sc.TraceID().String()),
			String("span_id", sc.SpanID().String()))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// globalLogger holds the process-wide logger for code with no better
// way to get one. Nil until SetGlobalLogger runs.
var globalLogger atomic.Pointer[Logger]

// SetGlobalLogger installs (or, with nil, clears) the process-wide
// logger.
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		globalLogger.Store(nil)
		return
	}
	globalLogger.Store(&logger)
}

// GetGlobalLogger returns the process-wide logger, or a nop logger when
// none is installed.
func GetGlobalLogger() Logger {
	if p := globalLogger.Load(); p != nil {
		return *p
	}
	return NopLogger()
}

// L is shorthand for GetGlobalLogger.
func L() Logger {
	return GetGlobalLogger()
}
