// Package logger provides structured logging for goask using zap.
//
// Query results go to stdout, so every logger writes to stderr or a file
// unless configured otherwise.
package logger

import (
	"fmt"
	"os"

	"github.com/gookit/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/goask/internal/config"
)

// Field keys shared by every component.
const (
	KeyComponent = "component"
	KeyRequest   = "request_id"
	KeySource    = "source"
	KeyTable     = "table"
)

// Logger wraps zap.SugaredLogger with the context helpers goask uses.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// New builds a Logger from configuration. An unknown level or a log file
// that cannot be opened is an error.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	sink, err := openSink(cfg.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(buildEncoder(cfg.Format, isTerminal(cfg.Output)), sink, level)
	return FromZap(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))), nil
}

// FromZap wraps an existing zap logger.
func FromZap(base *zap.Logger) *Logger {
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

// NewDefault logs text at info level to stderr.
func NewDefault() *Logger {
	l, err := New(&config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"})
	if err != nil {
		return NewNop()
	}
	return l
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return l, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// buildEncoder returns a JSON encoder for "json" and a console encoder
// otherwise. Console levels are colored only on a terminal stream and only
// while color output is enabled.
func buildEncoder(format string, terminal bool) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	if terminal && color.Enable {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

func isTerminal(output string) bool {
	return output == "" || output == "stderr" || output == "stdout"
}

// openSink resolves an output name to a writer. Anything other than stdout
// or stderr is a file path, appended to.
func openSink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "stderr", "":
		return zapcore.Lock(os.Stderr), nil
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}

func (l *Logger) with(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...), base: l.base}
}

// WithComponent tags entries with the emitting component.
func (l *Logger) WithComponent(name string) *Logger { return l.with(KeyComponent, name) }

// WithRequest tags entries with the id of the question being answered.
func (l *Logger) WithRequest(requestID string) *Logger { return l.with(KeyRequest, requestID) }

// WithSource tags entries with a data source label.
func (l *Logger) WithSource(source string) *Logger { return l.with(KeySource, source) }

func (l *Logger) WithTable(tableName string) *Logger { return l.with(KeyTable, tableName) }

// WithFields returns a Logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.with(args...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
