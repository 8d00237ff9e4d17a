package message

import (
	"fmt"

	"native-binder/codec"
)

const (
	statusSuccess = 0
	statusFailure = 1
)

// EncodeRequest encodes List[channel, method, args].
func EncodeRequest(channel, method string, args codec.Value) ([]byte, error) {
	return codec.Encode(codec.List(codec.Text(channel), codec.Text(method), args))
}

// DecodeRequest parses a request envelope. A request with only a channel and a
// method carries Null arguments.
func DecodeRequest(data []byte) (*MethodCall, error) {
	v, _, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	if v.Kind() != codec.KindList {
		return nil, fmt.Errorf("%w: expected list, got %s", ErrMalformedRequest, v.Kind())
	}
	if v.Len() < 2 {
		return nil, fmt.Errorf("%w: expected at least 2 elements, got %d", ErrMalformedRequest, v.Len())
	}
	channel, ok := v.Index(0).AsText()
	if !ok {
		return nil, fmt.Errorf("%w: channel is %s, not text", ErrMalformedRequest, v.Index(0).Kind())
	}
	method, ok := v.Index(1).AsText()
	if !ok {
		return nil, fmt.Errorf("%w: method is %s, not text", ErrMalformedRequest, v.Index(1).Kind())
	}
	return &MethodCall{
		Channel:   channel,
		Method:    method,
		Arguments: v.Index(2),
	}, nil
}

// EncodeResponse encodes a success as List[0, result] and a failure as
// List[1, code, message, details] with an empty message written as Null.
func EncodeResponse(env Envelope) ([]byte, error) {
	if env.Failure == nil {
		return codec.Encode(codec.List(codec.Int32(statusSuccess), env.Result))
	}
	msg := codec.Null()
	if env.Failure.Message != "" {
		msg = codec.Text(env.Failure.Message)
	}
	return codec.Encode(codec.List(
		codec.Int32(statusFailure),
		codec.Text(env.Failure.Code),
		msg,
		env.Failure.Details,
	))
}

// DecodeResponse parses a response envelope.
func DecodeResponse(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty buffer", ErrMalformedResponse)
	}
	v, _, err := codec.Decode(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if v.Kind() != codec.KindList || v.Len() < 1 {
		return Envelope{}, fmt.Errorf("%w: expected non-empty list, got %s", ErrMalformedResponse, v)
	}
	status, ok := v.Index(0).AsInt()
	if !ok {
		return Envelope{}, fmt.Errorf("%w: status is %s, not an integer", ErrMalformedResponse, v.Index(0).Kind())
	}

	switch status {
	case statusSuccess:
		return Success(v.Index(1)), nil
	case statusFailure:
		code, ok := v.Index(1).AsText()
		if !ok {
			return Envelope{}, fmt.Errorf("%w: failure code is %s, not text", ErrMalformedResponse, v.Index(1).Kind())
		}
		msg, _ := v.Index(2).AsText()
		return Fail(code, msg, v.Index(3)), nil
	}
	return Envelope{}, fmt.Errorf("%w: unknown status %d", ErrMalformedResponse, status)
}
