// Package logger builds the zap logger shared by the server, the sweep
// worker and the event consumer.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the encoder and the minimum level.
type Config struct {
	Env         string // dev and test log to the console, anything else as JSON
	Level       string // debug, info, warn or error; empty keeps the env default
	ServiceName string
}

// IsDevelopment reports whether env should use the console encoder.
func IsDevelopment(env string) bool {
	switch strings.ToLower(env) {
	case "", "dev", "development", "local", "test":
		return true
	}
	return false
}

// New builds a logger for cfg.
func New(cfg Config) (*zap.Logger, error) {
	var zc zap.Config
	if IsDevelopment(cfg.Env) {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "ts"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	log, err := zc.Build()
	if err != nil {
		return nil, err
	}
	if cfg.ServiceName != "" {
		log = log.With(zap.String("service", cfg.ServiceName))
	}
	return log, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
