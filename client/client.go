// Package client is the caller side of the bridge: it encodes a call, sends
// it through a boundary.Transport and turns the response envelope back into a
// value or a *CallError.
package client

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"native-binder/boundary"
	"native-binder/codec"
	"native-binder/message"
)

// CallError is returned for every failed call, whether the failure was
// reported by the remote handler or detected locally.
type CallError struct {
	Code    string
	Message string
	Details codec.Value
	err     error
}

func (e *CallError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Unwrap exposes the local cause (boundary.ErrUnavailable,
// message.ErrMalformedResponse, ...) when there is one.
func (e *CallError) Unwrap() error { return e.err }

// Is matches another *CallError with the same code, so callers can test
// errors.Is(err, &CallError{Code: message.CodeNoHandler}).
func (e *CallError) Is(target error) bool {
	t, ok := target.(*CallError)
	return ok && t.Code == e.Code
}

type Client struct {
	transport boundary.Transport
	logger    *zap.Logger
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(t boundary.Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke calls method on channel and blocks until the result is back. A
// timing wrapper added by the callee is stripped from the result.
func (c *Client) Invoke(channel, method string, args codec.Value) (codec.Value, error) {
	env, err := c.roundTrip(channel, method, args)
	if err != nil {
		return codec.Null(), err
	}
	return env.Value(), nil
}

// InvokeWithTiming is Invoke that also returns the callee's timing map, or
// Null when the callee did not add one.
func (c *Client) InvokeWithTiming(channel, method string, args codec.Value) (codec.Value, codec.Value, error) {
	env, err := c.roundTrip(channel, method, args)
	if err != nil {
		return codec.Null(), codec.Null(), err
	}
	timing, ok := env.Timing()
	if !ok {
		timing = codec.Null()
	}
	return env.Value(), timing, nil
}

// Call is Invoke for plain Go values: args goes through codec.FromAny and the
// result comes back as Value.Any.
func (c *Client) Call(channel, method string, args any) (any, error) {
	v, err := codec.FromAny(args)
	if err != nil {
		return nil, &CallError{Code: message.CodeInvalidInput, Message: err.Error(), Details: codec.Null(), err: err}
	}
	result, err := c.Invoke(channel, method, v)
	if err != nil {
		return nil, err
	}
	return result.Any(), nil
}

func (c *Client) roundTrip(channel, method string, args codec.Value) (message.Envelope, error) {
	// Step 1: encode the request; an unencodable argument never leaves the process
	req, err := message.EncodeRequest(channel, method, args)
	if err != nil {
		return message.Envelope{}, &CallError{Code: message.CodeInvalidInput, Message: err.Error(), Details: codec.Null(), err: err}
	}

	// Step 2: blocking round trip across the boundary
	if c.transport == nil {
		return message.Envelope{}, unavailable(boundary.ErrUnavailable)
	}
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		c.logger.Warn("round trip", zap.String("channel", channel), zap.String("method", method), zap.Error(err))
		if errors.Is(err, boundary.ErrUnavailable) {
			return message.Envelope{}, unavailable(err)
		}
		return message.Envelope{}, &CallError{Code: message.CodeBoundaryUnavailable, Message: err.Error(), Details: codec.Null(), err: err}
	}

	// Step 3: decode the envelope
	env, err := message.DecodeResponse(resp)
	if err != nil {
		c.logger.Warn("malformed response", zap.String("channel", channel), zap.Int("bytes", len(resp)), zap.Error(err))
		return message.Envelope{}, &CallError{Code: message.CodeMalformedResponse, Message: err.Error(), Details: codec.Null(), err: err}
	}
	if !env.OK() {
		return message.Envelope{}, &CallError{
			Code:    env.Failure.Code,
			Message: env.Failure.Message,
			Details: env.Failure.Details,
			err:     env.Failure,
		}
	}
	return env, nil
}

func unavailable(err error) *CallError {
	return &CallError{
		Code:    message.CodeBoundaryUnavailable,
		Message: fmt.Sprintf("native binding unavailable: %v", err),
		Details: codec.Null(),
		err:     err,
	}
}
