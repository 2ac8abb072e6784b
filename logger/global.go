package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	globalMu     sync.RWMutex
)

// setGlobalLoggerInternal sets the global logger (internal use by New).
func setGlobalLoggerInternal(l *zap.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// getGlobalLogger returns the global logger, building a default one on first
// use. Concurrency-safe.
func getGlobalLogger() *zap.Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = mustBuildDefaultLogger()
	}
	return globalLogger
}

// mustBuildDefaultLogger creates the fallback logger for package-level
// functions. CallerSkip(1) reports the caller of the wrapper, not the wrapper.
func mustBuildDefaultLogger() *zap.Logger {
	cfg := DefaultConfig()

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Encoding:         cfg.Encoding,
		EncoderConfig:    encoderConfig(),
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	}

	log, err := zapConfig.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.DPanicLevel),
	)
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// SetGlobalLogger sets the global logger. Create the logger with
// AddCallerSkip(1) for correct caller information from package-level functions.
func SetGlobalLogger(l *zap.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetGlobalLogger returns the current global logger.
func GetGlobalLogger() *zap.Logger {
	return getGlobalLogger()
}

// Debug logs a message at debug level using the global logger.
func Debug(msg string, fields ...zap.Field) {
	getGlobalLogger().Debug(msg, fields...)
}

// Info logs a message at info level using the global logger.
func Info(msg string, fields ...zap.Field) {
	getGlobalLogger().Info(msg, fields...)
}

// Warn logs a message at warn level using the global logger.
func Warn(msg string, fields ...zap.Field) {
	getGlobalLogger().Warn(msg, fields...)
}

// Error logs a message at error level using the global logger.
func Error(msg string, fields ...zap.Field) {
	getGlobalLogger().Error(msg, fields...)
}

// Sync flushes any buffered log entries from the global logger.
func Sync() error {
	return getGlobalLogger().Sync()
}
