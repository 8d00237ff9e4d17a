package channel

import (
	"context"
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"

	"native-binder/codec"
	"native-binder/message"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	callType    = reflect.TypeOf((*message.MethodCall)(nil))
	valueType   = reflect.TypeOf(codec.Value{})
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// NewService builds a method table from the exported methods of rcvr that
// have the shape
//
//	func (r *T) Name(ctx context.Context, call *message.MethodCall) (codec.Value, error)
//
// Each method is registered under its name with the first letter lowered, so
// Go's GetBatteryLevel answers "getBatteryLevel". Methods of any other shape
// are skipped.
func NewService(rcvr any) (Methods, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("channel: receiver must be a pointer, got %v", typ)
	}
	val := reflect.ValueOf(rcvr)
	if val.IsNil() {
		return nil, fmt.Errorf("channel: nil receiver %v", typ)
	}

	methods := make(Methods)
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		mt := method.Type
		// In(0) is the receiver.
		if mt.NumIn() != 3 || mt.NumOut() != 2 ||
			mt.In(1) != contextType || mt.In(2) != callType ||
			mt.Out(0) != valueType || mt.Out(1) != errorType {
			continue
		}
		fn := val.Method(i)
		methods[methodName(method.Name)] = func(ctx context.Context, call *message.MethodCall) (codec.Value, error) {
			results := fn.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(call)})
			if err, _ := results[1].Interface().(error); err != nil {
				return codec.Null(), err
			}
			return results[0].Interface().(codec.Value), nil
		}
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("channel: %s has no methods of the handler shape", typ)
	}
	return methods, nil
}

func methodName(goName string) string {
	r, size := utf8.DecodeRuneInString(goName)
	return string(unicode.ToLower(r)) + goName[size:]
}
