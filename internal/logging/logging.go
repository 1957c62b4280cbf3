// Package logging builds the zap loggers used by both binaries.
package logging

import (
	"fmt"
	"os"

	"flowchart/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a logger writing to stderr and, when cfg.File is set, to a
// rotating file as well
func New(cfg config.LogConfig, name string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEnc zapcore.Encoder
	switch cfg.Format {
	case "json":
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	case "console", "":
		devCfg := encCfg
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEnc = zapcore.NewConsoleEncoder(devCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level),
	}

	if cfg.File != "" {
		// Files always get JSON so they stay machine readable
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg),
			zapcore.AddSync(RotatingFile(cfg)),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named(name), nil
}

// RotatingFile returns the lumberjack writer for cfg.File
func RotatingFile(cfg config.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// Must is New for main packages
func Must(cfg config.LogConfig, name string) *zap.Logger {
	logger, err := New(cfg, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	return logger
}
