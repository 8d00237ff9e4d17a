package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"native-binder/channel"
	"native-binder/codec"
	"native-binder/message"
)

// Logging records every call with its duration at debug level, and failed
// calls at info level.
func Logging(logger *zap.Logger) Middleware {
	return func(next channel.Handler) channel.Handler {
		return channel.HandlerFunc(func(ctx context.Context, call *message.MethodCall) (codec.Value, error) {
			start := time.Now()
			result, err := next.HandleCall(ctx, call)
			fields := []zap.Field{
				zap.String("channel", call.Channel),
				zap.String("method", call.Method),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Info("call failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("call", fields...)
			}
			return result, err
		})
	}
}
