// Package main builds libnativebinder, the native side of the bridge as a C
// shared library:
//
//	go build -buildmode=c-shared -o libnativebinder.so ./cmd/libnativebinder
//
// The managed runtime calls native_binder_call with an encoded request and
// releases every returned buffer with native_binder_free. It installs its own
// entry point with dart_binder_register so native code can call back into it.
//
// Set NATIVE_BINDER_CONFIG to a TOML file to configure logging, middleware
// and the etcd channel directory.
package main

/*
#include <stdlib.h>
#include <stdint.h>

typedef uint8_t* (*DartBinderCallFunc)(uint8_t*, uint32_t, uint32_t*);

// cgo cannot call C function pointers directly.
static uint8_t* call_managed_func(DartBinderCallFunc fn, uint8_t* msg, uint32_t len, uint32_t* out_len) {
    return fn(msg, len, out_len);
}
*/
import "C"
import (
	"context"
	"math"
	"os"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"native-binder/boundary"
	"native-binder/channel"
	"native-binder/client"
	"native-binder/codec"
	"native-binder/config"
	"native-binder/dispatcher"
	"native-binder/logging"
	"native-binder/message"
	"native-binder/middleware"
	"native-binder/registry"
)

func main() {}

// RelayChannel lets a native-side caller reach managed handlers through the
// registered callback: relay.call takes [channel, method, args].
const RelayChannel = "native"

var (
	setupOnce sync.Once
	native    *dispatcher.Dispatcher
	logger    = zap.NewNop()

	callbackMu sync.RWMutex
	callback   C.DartBinderCallFunc
)

func setup() {
	setupOnce.Do(func() {
		path := os.Getenv("NATIVE_BINDER_CONFIG")
		cfg, cfgErr := loadConfig(path)
		logger = logging.Must(cfg.Log)
		if cfgErr != nil {
			logger.Error("load config, using defaults", zap.String("path", path), zap.Error(cfgErr))
		}

		var opts []registry.Option
		opts = append(opts, registry.WithLogger(logger))
		if cfg.Directory.Enabled() {
			dir, err := registry.NewEtcdDirectory(registry.EtcdConfig{
				Endpoints:   cfg.Directory.Endpoints,
				Prefix:      cfg.Directory.Prefix,
				TTL:         cfg.Directory.TTL,
				Process:     cfg.Directory.Process,
				DialTimeout: cfg.Directory.DialTimeout.Duration,
				Logger:      logger,
			})
			if err != nil {
				logger.Warn("directory disabled", zap.Error(err))
			} else {
				opts = append(opts, registry.WithDirectory(dir))
			}
		}
		reg := registry.New(opts...)
		if err := reg.Register(channel.SystemChannel, channel.System(reg)); err != nil {
			logger.Error("register channel", zap.String("channel", channel.SystemChannel), zap.Error(err))
		}
		relayClient := client.New(boundary.TransportFunc(callManaged), client.WithLogger(logger))
		if err := reg.Register(RelayChannel, relay(relayClient)); err != nil {
			logger.Error("register channel", zap.String("channel", RelayChannel), zap.Error(err))
		}

		mws := []middleware.Middleware{middleware.Logging(logger)}
		if cfg.Dispatch.RateLimit > 0 {
			mws = append(mws, middleware.RateLimit(cfg.Dispatch.RateLimit, cfg.Dispatch.Burst))
		}
		if cfg.Dispatch.Timing {
			mws = append(mws, middleware.Timing())
		}
		native = dispatcher.New(reg, dispatcher.WithLogger(logger), dispatcher.WithMiddleware(mws...))
	})
}

// loadConfig reads path, falling back to the defaults when path is empty or
// unreadable. The error is returned so the caller can log it once a logger
// exists.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Default(), err
	}
	return cfg, nil
}

// cLength reports whether n fits the int length C.GoBytes takes.
func cLength(n uint64) bool {
	return n <= math.MaxInt32
}

//export native_binder_call
func native_binder_call(msg *C.uint8_t, length C.uint32_t, outLen *C.uint32_t) *C.uint8_t {
	*outLen = 0
	if msg == nil || !cLength(uint64(length)) {
		return nil
	}
	setup()
	req := C.GoBytes(unsafe.Pointer(msg), C.int(length))
	return toC(native.HandleIncoming(req), outLen)
}

//export native_binder_free
func native_binder_free(ptr *C.uint8_t) {
	if ptr != nil {
		C.free(unsafe.Pointer(ptr))
	}
}

//export dart_binder_register
func dart_binder_register(fn C.DartBinderCallFunc) {
	callbackMu.Lock()
	callback = fn
	callbackMu.Unlock()
}

// toC copies data into malloc'd memory the caller releases with
// native_binder_free. An empty response still allocates one byte.
func toC(data []byte, outLen *C.uint32_t) *C.uint8_t {
	size := len(data)
	if size == 0 {
		size = 1
	}
	p := (*C.uint8_t)(C.malloc(C.size_t(size)))
	if p == nil {
		return nil
	}
	if len(data) > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(p)), len(data)), data)
	}
	*outLen = C.uint32_t(len(data))
	return p
}

// callManaged sends req through the registered managed callback. The request
// buffer is ours; the response belongs to the managed side's allocator, which
// shares this process's malloc, so it is freed here after copying.
func callManaged(req []byte) ([]byte, error) {
	callbackMu.RLock()
	fn := callback
	callbackMu.RUnlock()
	if fn == nil {
		return nil, boundary.ErrUnavailable
	}

	in := (*C.uint8_t)(C.malloc(C.size_t(len(req) + 1)))
	if in == nil {
		return nil, boundary.ErrUnavailable
	}
	defer C.free(unsafe.Pointer(in))
	copy(unsafe.Slice((*byte)(unsafe.Pointer(in)), len(req)), req)

	var outLen C.uint32_t
	out := C.call_managed_func(fn, in, C.uint32_t(len(req)), &outLen)
	if out == nil {
		return nil, boundary.ErrUnavailable
	}
	defer C.free(unsafe.Pointer(out))
	if !cLength(uint64(outLen)) {
		return nil, boundary.ErrUnavailable
	}
	return C.GoBytes(unsafe.Pointer(out), C.int(outLen)), nil
}

// relay forwards [channel, method, args] to the managed side.
func relay(c *client.Client) channel.Methods {
	return channel.Methods{
		"call": func(_ context.Context, call *message.MethodCall) (codec.Value, error) {
			args := call.Arguments
			if args.Kind() != codec.KindList || args.Len() < 2 {
				return codec.Null(), &message.Failure{Code: message.CodeInvalidInput, Message: "expected [channel, method, args]"}
			}
			ch, ok1 := args.Index(0).AsText()
			method, ok2 := args.Index(1).AsText()
			if !ok1 || !ok2 {
				return codec.Null(), &message.Failure{Code: message.CodeInvalidInput, Message: "channel and method must be text"}
			}
			inner := codec.Null()
			if args.Len() > 2 {
				inner = args.Index(2)
			}
			result, err := c.Invoke(ch, method, inner)
			if ce, ok := err.(*client.CallError); ok {
				return codec.Null(), &message.Failure{Code: ce.Code, Message: ce.Message, Details: ce.Details}
			}
			return result, err
		},
	}
}
