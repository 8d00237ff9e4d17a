package channel

import (
	"context"
	"errors"
	"testing"

	"native-binder/codec"
	"native-binder/message"
)

type Battery struct {
	level int32
}

func (b *Battery) GetBatteryLevel(ctx context.Context, call *message.MethodCall) (codec.Value, error) {
	return codec.Int32(b.level), nil
}

func (b *Battery) Drain(ctx context.Context, call *message.MethodCall) (codec.Value, error) {
	return codec.Null(), errors.New("battery is sealed")
}

// Wrong shape, must be skipped.
func (b *Battery) Level() int32 { return b.level }

type staticLister []string

func (s staticLister) Channels() []string { return s }

func call(method string, args codec.Value) *message.MethodCall {
	return &message.MethodCall{Channel: "test", Method: method, Arguments: args}
}

func TestMethodsDispatch(t *testing.T) {
	m := Methods{
		"double": func(ctx context.Context, c *message.MethodCall) (codec.Value, error) {
			n, _ := c.Arguments.AsInt()
			return codec.Int(n * 2), nil
		},
	}

	v, err := m.HandleCall(context.Background(), call("double", codec.Int32(21)))
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := v.AsInt(); n != 42 {
		t.Fatalf("expect 42, got %s", v)
	}

	_, err = m.HandleCall(context.Background(), call("triple", codec.Null()))
	if !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expect ErrNotImplemented, got %v", err)
	}
}

func TestNewService(t *testing.T) {
	methods, err := NewService(&Battery{level: 80})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	if len(methods) != 2 {
		t.Fatalf("expect 2 methods, got %d", len(methods))
	}

	v, err := methods.HandleCall(context.Background(), call("getBatteryLevel", codec.Null()))
	if err != nil {
		t.Fatal(err)
	}
	if !codec.Equal(v, codec.Int32(80)) {
		t.Fatalf("expect 80, got %s", v)
	}

	_, err = methods.HandleCall(context.Background(), call("drain", codec.Null()))
	if err == nil || err.Error() != "battery is sealed" {
		t.Fatalf("expect handler error, got %v", err)
	}

	if _, err := methods.HandleCall(context.Background(), call("level", codec.Null())); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expect wrong-shape method to be absent, got %v", err)
	}
}

func TestNewServiceRejects(t *testing.T) {
	if _, err := NewService(Battery{}); err == nil {
		t.Fatal("expect error for non-pointer receiver")
	}
	if _, err := NewService(&struct{}{}); err == nil {
		t.Fatal("expect error for receiver without handler methods")
	}
	if _, err := NewService(nil); err == nil {
		t.Fatal("expect error for nil receiver")
	}
}

func TestSystemChannel(t *testing.T) {
	sys := System(staticLister{"a", "binder"})
	ctx := context.Background()

	v, err := sys.HandleCall(ctx, call("ping", codec.Null()))
	if err != nil || !codec.Equal(v, codec.Text("pong")) {
		t.Fatalf("ping: got %s, %v", v, err)
	}

	args := codec.List(codec.Int32(1), codec.Text("x"))
	v, err = sys.HandleCall(ctx, call("echo", args))
	if err != nil || !codec.Equal(v, args) {
		t.Fatalf("echo: got %s, %v", v, err)
	}

	v, err = sys.HandleCall(ctx, call("channels", codec.Null()))
	if err != nil || !codec.Equal(v, codec.List(codec.Text("a"), codec.Text("binder"))) {
		t.Fatalf("channels: got %s, %v", v, err)
	}
}
