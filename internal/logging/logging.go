// Package logging provides the production zap logger for the bridge binary
// and an adapter that lets the realtime client log through it.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a production console logger at the given level ("debug",
// "info", "warn", "error"; anything else means info).
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// FileConfig configures the optional rotating file sink.
type FileConfig struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFile builds a JSON logger writing to a size-rotated file.
func NewFile(level string, fc FileConfig) *zap.Logger {
	hook := lumberjack.Logger{
		Filename:   fc.Filename,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&hook),
		parseLevel(level),
	)
	return zap.New(core)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ClientAdapter bridges the realtime client's event/fields logging calls
// onto a zap logger. It satisfies the client's Logger interface.
type ClientAdapter struct {
	logger *zap.Logger
}

// NewClientAdapter wraps a zap logger for use as the realtime client's
// Logger.
func NewClientAdapter(logger *zap.Logger) *ClientAdapter {
	return &ClientAdapter{logger: logger}
}

func (a *ClientAdapter) Debug(event string, fields map[string]any) {
	a.logger.Debug(event, zapFields(fields)...)
}

func (a *ClientAdapter) Info(event string, fields map[string]any) {
	a.logger.Info(event, zapFields(fields)...)
}

func (a *ClientAdapter) Warn(event string, fields map[string]any) {
	a.logger.Warn(event, zapFields(fields)...)
}

func (a *ClientAdapter) Error(event string, fields map[string]any) {
	a.logger.Error(event, zapFields(fields)...)
}

func zapFields(fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
