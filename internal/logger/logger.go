package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kultuurivoog/internal/config"
)

const serviceName = "kultuurivoog"

// New builds the process logger. Unknown levels fall back to info.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(strings.TrimSpace(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := strings.ToLower(strings.TrimSpace(cfg.Encoding))
	if encoding != "json" {
		encoding = "console"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	if encoding == "console" {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encoding,
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: cfg.DisableStacktrace,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		InitialFields:     map[string]any{"service": serviceName},
	}
	if cfg.Sampling {
		zc.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	}

	return zc.Build()
}

// ForSource scopes a logger to one source adapter. A nil logger yields a no-op logger.
func ForSource(l *zap.Logger, source string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.Named("scraper").With(zap.String("source", source))
}
