// Package runlog wraps zap to give the engine and CLI a structured
// logger that writes to stderr and, when given a log file path, to
// that file as well.
package runlog

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin, job-aware wrapper over a zap SugaredLogger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger. mode selects the encoder: "production" for
// JSON output, anything else for the human-readable development
// console encoder. logFilePath is optional; when set, log output is
// written to both stderr and that file.
func New(mode string, logFilePath string) (*Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(mode, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	if logFilePath != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFilePath)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, logFilePath)
	}

	built, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: built.Sugar()}, nil
}

// Sync flushes any buffered log entries; callers should defer it.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...any) { l.sugar.Debugw(msg, keysAndValues...) }
func (l *Logger) Info(msg string, keysAndValues ...any)  { l.sugar.Infow(msg, keysAndValues...) }
func (l *Logger) Warn(msg string, keysAndValues ...any)  { l.sugar.Warnw(msg, keysAndValues...) }
func (l *Logger) Error(msg string, keysAndValues ...any) { l.sugar.Errorw(msg, keysAndValues...) }

// With returns a child Logger carrying the given key/value pairs on
// every subsequent entry, e.g. job_id and task_name for the duration
// of a run.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}
