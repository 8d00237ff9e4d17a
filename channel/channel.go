// Package channel defines the handler side of a channel: the Handler
// interface, method tables keyed by method name, and the built-in system
// channel.
package channel

import (
	"context"
	"errors"
	"fmt"

	"native-binder/codec"
	"native-binder/message"
)

// ErrNotImplemented is returned by a handler that does not know the method it
// was asked for. The dispatcher reports it as NOT_IMPLEMENTED.
var ErrNotImplemented = errors.New("channel: method not implemented")

// NotImplemented wraps ErrNotImplemented with the method name.
func NotImplemented(method string) error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, method)
}

// Handler processes calls addressed to one channel.
type Handler interface {
	HandleCall(ctx context.Context, call *message.MethodCall) (codec.Value, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, call *message.MethodCall) (codec.Value, error)

func (f HandlerFunc) HandleCall(ctx context.Context, call *message.MethodCall) (codec.Value, error) {
	return f(ctx, call)
}

// Methods maps method names to their implementations. Calls to names not in
// the table fail with ErrNotImplemented.
type Methods map[string]HandlerFunc

func (m Methods) HandleCall(ctx context.Context, call *message.MethodCall) (codec.Value, error) {
	fn, ok := m[call.Method]
	if !ok {
		return codec.Null(), NotImplemented(call.Method)
	}
	return fn(ctx, call)
}
