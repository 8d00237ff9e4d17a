package middleware

import (
	"context"
	"time"

	"native-binder/channel"
	"native-binder/codec"
	"native-binder/message"
)

// Timing wraps successful results as {_value: result, _timing: {...}} so the
// caller can see how long the handler ran. Failures pass through untouched.
func Timing() Middleware {
	return func(next channel.Handler) channel.Handler {
		return channel.HandlerFunc(func(ctx context.Context, call *message.MethodCall) (codec.Value, error) {
			start := time.Now()
			result, err := next.HandleCall(ctx, call)
			if err != nil {
				return result, err
			}
			elapsed := time.Since(start)
			timing := codec.Map(
				codec.Entry{Key: codec.Text("handler_us"), Value: codec.Int(elapsed.Microseconds())},
				codec.Entry{Key: codec.Text("start_unix_us"), Value: codec.Int(start.UnixMicro())},
			)
			return message.WithTiming(result, timing), nil
		})
	}
}
