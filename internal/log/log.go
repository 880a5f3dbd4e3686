package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu         sync.RWMutex
	logger     *zap.SugaredLogger
	loggerOnce sync.Once
	atomLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the global logger writing console-encoded lines to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		cfg.Level = atomLevel
		cfg.Sampling = nil

		z, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			z = zap.NewNop()
		}
		mu.Lock()
		if logger == nil {
			logger = z.Sugar()
		}
		mu.Unlock()
	})
}

func current() *zap.SugaredLogger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// UseLogger replaces the global logger. Tests pass a logger built on
// zaptest/observer to assert on emitted entries.
func UseLogger(z *zap.Logger) {
	initLogger()
	mu.Lock()
	logger = z.WithOptions(zap.AddCallerSkip(1)).Sugar()
	mu.Unlock()
}

func SetLevel(l Level) {
	atomLevel.SetLevel(toZapLevel(l))
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Errorw(msg, extended...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = current().Sync()
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// CronAdapter adapts the package logger to robfig/cron's Logger interface.
type CronAdapter struct{}

// CronLogger returns a cron.Logger compatible value backed by this package.
func CronLogger() CronAdapter {
	return CronAdapter{}
}

func (CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	current().Debugw("cron: "+msg, keysAndValues...)
}

func (CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	extended := append([]any{"err", err}, keysAndValues...)
	current().Errorw("cron: "+msg, extended...)
}
