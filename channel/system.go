package channel

import (
	"context"

	"native-binder/codec"
	"native-binder/message"
)

// SystemChannel is the name the built-in diagnostics channel is usually
// registered under.
const SystemChannel = "binder"

// Lister reports the registered channel names.
type Lister interface {
	Channels() []string
}

// System returns the diagnostics channel:
//
//	ping      → "pong"
//	echo      → the arguments unchanged
//	channels  → list of registered channel names
func System(l Lister) Methods {
	return Methods{
		"ping": func(context.Context, *message.MethodCall) (codec.Value, error) {
			return codec.Text("pong"), nil
		},
		"echo": func(_ context.Context, call *message.MethodCall) (codec.Value, error) {
			return call.Arguments, nil
		},
		"channels": func(context.Context, *message.MethodCall) (codec.Value, error) {
			names := l.Channels()
			items := make([]codec.Value, len(names))
			for i, n := range names {
				items[i] = codec.Text(n)
			}
			return codec.List(items...), nil
		},
	}
}
