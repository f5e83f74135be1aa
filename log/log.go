package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// NewRootLogger returns a logger writing format encoded entries at or above
// level to w. Supported formats are json, logfmt and console (or auto).
func NewRootLogger(format string, level string, w io.Writer) (*zap.Logger, error) {
	enc, err := newEncoder(format)
	if err != nil {
		return nil, err
	}

	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	return zap.New(zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), lvl)), nil
}

// NewRootLoggerWithFile is NewRootLogger writing to both w and logFile.
// The file is appended to and created along its directory when missing.
func NewRootLoggerWithFile(w io.Writer, logFile string, format string, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
	}

	return NewRootLogger(format, level, io.MultiWriter(w, f))
}

func newEncoder(format string) (zapcore.Encoder, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.LevelKey = "lvl"
	cfg.EncodeTime = func(ts time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(ts.UTC().Format(timeLayout))
	}

	switch format {
	case "json":
		return zapcore.NewJSONEncoder(cfg), nil
	case "logfmt":
		return zaplogfmt.NewEncoder(cfg), nil
	case "auto", "console":
		return zapcore.NewConsoleEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("unrecognized log format %q", format)
	}
}

func parseLevel(level string) (zapcore.Level, error) {
	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return lvl, fmt.Errorf("unsupported log level %q: %w", level, err)
	}

	return lvl, nil
}
