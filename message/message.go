// Package message defines the call and response envelopes exchanged across the
// boundary and their wire layout on top of the codec.
//
//	request:  List[channel, method, arguments]
//	success:  List[0, result]
//	failure:  List[1, code, message|null, details|null]
package message

import (
	"errors"
	"fmt"

	"native-binder/codec"
)

// Failure codes carried in failure envelopes.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeNoHandler           = "NO_HANDLER"
	CodeNotImplemented      = "NOT_IMPLEMENTED"
	CodeHandlerError        = "HANDLER_ERROR"
	CodeBoundaryUnavailable = "BOUNDARY_UNAVAILABLE"
	CodeMalformedResponse   = "MALFORMED_RESPONSE"
	CodeRateLimited         = "RATE_LIMITED"
)

var (
	ErrMalformedRequest  = errors.New("message: malformed request")
	ErrMalformedResponse = errors.New("message: malformed response")
)

// MethodCall is one invocation of a method on a named channel.
type MethodCall struct {
	Channel   string
	Method    string
	Arguments codec.Value
}

// Failure is the error half of an Envelope. It also implements error so a
// handler can return one to choose its own code.
type Failure struct {
	Code    string
	Message string
	Details codec.Value
}

func (f *Failure) Error() string {
	if f == nil {
		return "<nil failure>"
	}
	if f.Message == "" {
		return f.Code
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

// Envelope is the outcome of one call: either a result or a Failure.
type Envelope struct {
	Result  codec.Value
	Failure *Failure
}

func Success(result codec.Value) Envelope {
	return Envelope{Result: result}
}

func Fail(code, msg string, details codec.Value) Envelope {
	return Envelope{Failure: &Failure{Code: code, Message: msg, Details: details}}
}

func (e Envelope) OK() bool { return e.Failure == nil }

// Reserved keys of the timing wrapper around success payloads.
const (
	ValueKey  = "_value"
	TimingKey = "_timing"
)

// WithTiming wraps result as {_value: result, _timing: timing}.
func WithTiming(result, timing codec.Value) codec.Value {
	return codec.Map(
		codec.Entry{Key: codec.Text(ValueKey), Value: result},
		codec.Entry{Key: codec.Text(TimingKey), Value: timing},
	)
}

// unwrapTiming reports the inner value and timing map when v is a timing
// wrapper: a two-entry map holding exactly _value and a map under _timing.
func unwrapTiming(v codec.Value) (codec.Value, codec.Value, bool) {
	if v.Kind() != codec.KindMap || v.Len() != 2 {
		return v, codec.Null(), false
	}
	inner, ok := v.Lookup(ValueKey)
	if !ok {
		return v, codec.Null(), false
	}
	timing, ok := v.Lookup(TimingKey)
	if !ok || timing.Kind() != codec.KindMap {
		return v, codec.Null(), false
	}
	return inner, timing, true
}

// Value is the success result with any timing wrapper removed.
func (e Envelope) Value() codec.Value {
	v, _, _ := unwrapTiming(e.Result)
	return v
}

// Timing returns the diagnostic timing map attached to a success result.
func (e Envelope) Timing() (codec.Value, bool) {
	_, timing, ok := unwrapTiming(e.Result)
	return timing, ok
}
