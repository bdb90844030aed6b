package observability

import (
	"context"
	"maps"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/glassworks/storefront/internal/platform/requestctx"
)

// EventLogger is the structured logging hook injected into services.
type EventLogger func(ctx context.Context, event string, fields map[string]any)

// NewLogger returns a JSON logger shaped for Cloud Logging: "severity", "message" and
// "timestamp" keys, upper case levels. LOG_LEVEL picks the level, info by default.
func NewLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		_ = level.UnmarshalText([]byte(strings.ToLower(raw)))
	}

	enc := zap.NewProductionEncoderConfig()
	enc.MessageKey = "message"
	enc.TimeKey = "timestamp"
	enc.LevelKey = "severity"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig = enc
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stdout"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// NewEventLogger adapts zap to services.Logger. Events ending in ".failed" or ".error" log at
// warn. The request logger wins over fallback so request ids and trace ids ride along.
func NewEventLogger(fallback *zap.Logger) EventLogger {
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.LoggerOr(ctx, fallback)
		zf := make([]zap.Field, 0, len(fields)+1)
		zf = append(zf, zap.String("event", event))
		for _, key := range slices.Sorted(maps.Keys(fields)) {
			zf = append(zf, zap.Any(key, fields[key]))
		}
		level := zapcore.InfoLevel
		if strings.HasSuffix(event, ".failed") || strings.HasSuffix(event, ".error") {
			level = zapcore.WarnLevel
		}
		logger.Log(level, event, zf...)
	}
}
