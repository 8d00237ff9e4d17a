// Package dispatcher is the callee side of a call: it turns request bytes into
// response bytes.
//
// Request processing pipeline:
//
//	HandleIncoming(bytes)
//	  → message.DecodeRequest        (failure: INVALID_INPUT)
//	  → registry.Resolve(channel)    (miss: NO_HANDLER)
//	  → middleware chain → handler   (errors and panics: HANDLER_ERROR / NOT_IMPLEMENTED)
//	  → message.EncodeResponse
//
// Every path ends in a validly encoded envelope; nothing escapes as a panic.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"native-binder/channel"
	"native-binder/codec"
	"native-binder/message"
	"native-binder/middleware"
	"native-binder/registry"
)

// Detailer is implemented by handler errors that carry a structured payload
// for the failure envelope's details field.
type Detailer interface {
	Details() codec.Value
}

type Dispatcher struct {
	registry    *registry.Registry
	middlewares []middleware.Middleware
	logger      *zap.Logger
}

type Option func(*Dispatcher)

// WithMiddleware appends middlewares around every handler call, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(d *Dispatcher) { d.middlewares = append(d.middlewares, mws...) }
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func New(reg *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleIncoming decodes a request, runs it and returns the encoded response.
func (d *Dispatcher) HandleIncoming(data []byte) (out []byte) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			out = append([]byte(nil), fallbackResponse...)
		}
	}()

	call, err := message.DecodeRequest(data)
	if err != nil {
		d.logger.Warn("invalid request", zap.Int("bytes", len(data)), zap.Error(err))
		return d.encode(message.Fail(message.CodeInvalidInput, err.Error(), codec.Null()))
	}
	return d.encode(d.Dispatch(context.Background(), call))
}

// Dispatch runs an already decoded call.
func (d *Dispatcher) Dispatch(ctx context.Context, call *message.MethodCall) message.Envelope {
	handler, ok := d.registry.Resolve(call.Channel)
	if !ok {
		d.logger.Debug("no handler", zap.String("channel", call.Channel), zap.String("method", call.Method))
		return message.Fail(message.CodeNoHandler, fmt.Sprintf("no handler registered for channel %q", call.Channel), codec.Null())
	}
	handler = middleware.Chain(d.middlewares...)(handler)

	result, err := d.invoke(ctx, handler, call)
	if err != nil {
		env := failureFor(err)
		d.logger.Warn("handler failed",
			zap.String("channel", call.Channel),
			zap.String("method", call.Method),
			zap.String("code", env.Failure.Code),
			zap.Error(err))
		return env
	}
	return message.Success(result)
}

// invoke calls the handler and turns a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, h channel.Handler, call *message.MethodCall) (result codec.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = codec.Null()
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return h.HandleCall(ctx, call)
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprint(p.value) }

func (p *panicError) Details() codec.Value { return codec.Text(string(p.stack)) }

func failureFor(err error) message.Envelope {
	if errors.Is(err, channel.ErrNotImplemented) {
		return message.Fail(message.CodeNotImplemented, err.Error(), codec.Null())
	}
	var f *message.Failure
	if errors.As(err, &f) {
		if f == nil {
			return message.Fail(message.CodeHandlerError, "handler returned a nil *message.Failure", codec.Null())
		}
		return message.Envelope{Failure: f}
	}
	details := codec.Null()
	var dt Detailer
	if errors.As(err, &dt) {
		details = dt.Details()
	}
	return message.Fail(message.CodeHandlerError, err.Error(), details)
}

// encode never fails: a result that cannot be encoded becomes a
// HANDLER_ERROR, and details that cannot be encoded are dropped.
func (d *Dispatcher) encode(env message.Envelope) []byte {
	out, err := message.EncodeResponse(env)
	if err == nil {
		return out
	}
	d.logger.Warn("encode response", zap.Error(err))

	if env.OK() {
		env = message.Fail(message.CodeHandlerError, "encode result: "+err.Error(), codec.Null())
	} else {
		env = message.Fail(env.Failure.Code, env.Failure.Message, codec.Null())
	}
	if out, err := message.EncodeResponse(env); err == nil {
		return out
	}
	return append([]byte(nil), fallbackResponse...)
}

var fallbackResponse = func() []byte {
	out, err := message.EncodeResponse(message.Fail(message.CodeHandlerError, "response encoding failed", codec.Null()))
	if err != nil {
		panic("dispatcher: cannot encode fallback response: " + err.Error())
	}
	return out
}()
