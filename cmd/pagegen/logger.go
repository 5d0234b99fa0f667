package main

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Guliveer/pagegen/internal/config"
)

// initLogger creates a zap logger based on the configuration.
// Console output goes to w so stdout stays free for page content; a JSON log
// file is added when configured. The returned func closes the log file.
func initLogger(cfg *config.Config, w io.Writer) (*zap.Logger, func()) {
	level := parseLevel(cfg.Logging.Level)

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	if cfg.Logging.File == "" {
		return zap.New(consoleCore), func() {}
	}

	file, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		logger := zap.New(consoleCore)
		logger.Warn("Could not open log file, logging to console only",
			zap.String("file", cfg.Logging.File),
			zap.Error(err))
		return logger, func() {}
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(file),
		level,
	)
	return zap.New(zapcore.NewTee(consoleCore, fileCore)), func() { _ = file.Close() }
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
