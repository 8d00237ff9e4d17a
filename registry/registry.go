// Package registry maps channel names to handlers.
//
// A Registry is an explicit object rather than a process-wide singleton so
// tests and embedders can run isolated instances side by side. All methods are
// safe for concurrent use.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"native-binder/channel"
)

var (
	// ErrChannelExists is returned when registering a name that already has a
	// handler. Registration never silently replaces a handler; unregister first.
	ErrChannelExists  = errors.New("registry: channel already registered")
	ErrInvalidChannel = errors.New("registry: invalid channel")
)

// Directory publishes which channels this process serves. Failures are logged
// and never undo a local registration.
type Directory interface {
	Advertise(channel string) error
	Withdraw(channel string) error
}

type Registry struct {
	// update orders Register/Unregister so directory calls follow the same
	// sequence as the map changes. Resolve never takes it.
	update   sync.Mutex
	mu       sync.RWMutex
	handlers map[string]channel.Handler
	dir      Directory
	logger   *zap.Logger
}

type Option func(*Registry)

func WithDirectory(d Directory) Option {
	return func(r *Registry) { r.dir = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func New(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[string]channel.Handler),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds handler to name.
func (r *Registry) Register(name string, handler channel.Handler) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidChannel)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %q", ErrInvalidChannel, name)
	}
	r.update.Lock()
	defer r.update.Unlock()

	r.mu.Lock()
	if _, ok := r.handlers[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrChannelExists, name)
	}
	r.handlers[name] = handler
	r.mu.Unlock()

	r.logger.Debug("channel registered", zap.String("channel", name))
	if r.dir != nil {
		if err := r.dir.Advertise(name); err != nil {
			r.logger.Warn("advertise channel", zap.String("channel", name), zap.Error(err))
		}
	}
	return nil
}

// Unregister removes name. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.update.Lock()
	defer r.update.Unlock()

	r.mu.Lock()
	_, ok := r.handlers[name]
	delete(r.handlers, name)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.logger.Debug("channel unregistered", zap.String("channel", name))
	if r.dir != nil {
		if err := r.dir.Withdraw(name); err != nil {
			r.logger.Warn("withdraw channel", zap.String("channel", name), zap.Error(err))
		}
	}
}

// Resolve looks up the handler for name.
func (r *Registry) Resolve(name string) (channel.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Channels returns the registered names in sorted order.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
