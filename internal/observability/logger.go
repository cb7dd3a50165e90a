package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"finitefield.org/bloomcare-web/internal/requestctx"
)

// NewLogger writes JSON lines to w at the level named by LOG_LEVEL (info when unset or unknown).
// Field names follow Cloud Logging's structured payload.
func NewLogger(w io.Writer) *zap.Logger {
	return newLogger(os.Getenv("LOG_LEVEL"), zapcore.AddSync(w))
}

func newLogger(rawLevel string, out zapcore.WriteSyncer) *zap.Logger {
	level, err := zapcore.ParseLevel(strings.TrimSpace(rawLevel))
	unknown := err != nil && strings.TrimSpace(rawLevel) != ""
	if err != nil {
		level = zapcore.InfoLevel
	}

	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "severity",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})
	logger := zap.New(zapcore.NewCore(enc, zapcore.Lock(out), level),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)
	if unknown {
		logger.Warn("unknown LOG_LEVEL, using info", zap.String("value", rawLevel))
	}
	return logger
}

// WithLogger injects the logger into ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}
