// Package logging builds the process zap logger.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level and destination.
type Config struct {
	// Level is a zap level name ("debug", "info", ...). Empty means info.
	Level string

	// File, when set, receives the log through a rotating writer instead of
	// stderr.
	File string
}

// EncoderConfig is the production config with ISO-8601 times and capital
// levels.
func EncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

// Options annotates the caller and only adds stack traces from DPanic up.
func Options() []zap.Option {
	var stackTraceLevel zap.LevelEnablerFunc = func(level zapcore.Level) bool {
		return level >= zapcore.DPanicLevel
	}
	return []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(stackTraceLevel),
	}
}

// Rotator returns the rotating writer for path: 100MB files, 5 compressed
// backups.
func Rotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 5,
		LocalTime:  true,
		Compress:   true,
	}
}

// New builds a JSON logger. stderr is used when cfg.File is empty; tests
// pass their own writer.
func New(cfg Config, stderr io.Writer) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() error { return nil }
	var ws zapcore.WriteSyncer
	switch {
	case cfg.File != "":
		rot := Rotator(cfg.File)
		ws = zapcore.AddSync(rot)
		closeFn = rot.Close
	case stderr != nil:
		ws = zapcore.AddSync(stderr)
	default:
		ws = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(EncoderConfig()), ws, level)
	logger := zap.New(core, Options()...)
	return logger, func() error {
		_ = logger.Sync()
		return closeFn()
	}, nil
}

// ParseLevel accepts zap level names case-insensitively. Empty is info.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(s))
}
