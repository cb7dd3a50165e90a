// Package requestctx carries per-request values (logger, trace id, user id) through context.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type valuesKey struct{}

// values is copied on every change so parent contexts never observe a child's update.
type values struct {
	logger  *zap.Logger
	traceID string
	userID  string
}

var nop = zap.NewNop()

func load(ctx context.Context) values {
	if ctx == nil {
		return values{}
	}
	v, _ := ctx.Value(valuesKey{}).(values)
	return v
}

func store(ctx context.Context, v values) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, valuesKey{}, v)
}

// WithLogger attaches logger to ctx. A nil logger clears it.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	v := load(ctx)
	v.logger = logger
	return store(ctx, v)
}

// Logger returns the request logger, or a no-op logger outside a request.
func Logger(ctx context.Context) *zap.Logger {
	return LoggerOr(ctx, nop)
}

// LoggerOr returns the request logger, or fallback when none is attached.
func LoggerOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l := load(ctx).logger; l != nil {
		return l
	}
	if fallback == nil {
		return nop
	}
	return fallback
}

// WithTraceID records the W3C trace id of the server span.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	v := load(ctx)
	v.traceID = traceID
	return store(ctx, v)
}

// TraceID returns the id recorded by WithTraceID.
func TraceID(ctx context.Context) string { return load(ctx).traceID }

// WithUserID records the signed-in user's backend id.
func WithUserID(ctx context.Context, id string) context.Context {
	v := load(ctx)
	v.userID = id
	return store(ctx, v)
}

// UserID returns the id recorded by WithUserID.
func UserID(ctx context.Context) string { return load(ctx).userID }
