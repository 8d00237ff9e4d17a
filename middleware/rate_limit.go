package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"native-binder/channel"
	"native-binder/codec"
	"native-binder/message"
)

// RateLimit rejects calls beyond r per second (token bucket with the given
// burst) with a RATE_LIMITED failure. Rejected calls never reach the handler.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next channel.Handler) channel.Handler {
		return channel.HandlerFunc(func(ctx context.Context, call *message.MethodCall) (codec.Value, error) {
			if !limiter.Allow() {
				return codec.Null(), &message.Failure{
					Code:    message.CodeRateLimited,
					Message: "rate limit exceeded",
				}
			}
			return next.HandleCall(ctx, call)
		})
	}
}
