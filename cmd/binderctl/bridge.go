package main

import (
	"fmt"

	"go.uber.org/zap"

	"native-binder/boundary"
	"native-binder/channel"
	"native-binder/client"
	"native-binder/config"
	"native-binder/dispatcher"
	"native-binder/middleware"
	"native-binder/registry"
)

// bridge is an in-process stand-in for a native library: a platform
// registry serving the system channel behind a NativeLibrary, reached through
// a forward transport.
type bridge struct {
	client    *client.Client
	heap      *boundary.Heap
	registry  *registry.Registry
	directory *registry.EtcdDirectory
}

func newBridge(cfg config.Config, logger *zap.Logger) (*bridge, error) {
	b := &bridge{heap: boundary.NewHeap()}

	regOpts := []registry.Option{registry.WithLogger(logger)}
	if cfg.Directory.Enabled() {
		dir, err := registry.NewEtcdDirectory(etcdConfig(cfg.Directory, logger))
		if err != nil {
			return nil, fmt.Errorf("directory: %w", err)
		}
		b.directory = dir
		regOpts = append(regOpts, registry.WithDirectory(dir))
	}
	b.registry = registry.New(regOpts...)
	if err := b.registry.Register(channel.SystemChannel, channel.System(b.registry)); err != nil {
		b.Close()
		return nil, err
	}

	d := dispatcher.New(b.registry,
		dispatcher.WithLogger(logger),
		dispatcher.WithMiddleware(middlewares(cfg.Dispatch, logger)...))
	lib := boundary.NewNativeLibrary(b.heap,
		boundary.WithPlatform(d),
		boundary.WithLibraryLogger(logger))
	b.client = client.New(boundary.NewForwardTransport(lib, logger), client.WithLogger(logger))
	return b, nil
}

func middlewares(cfg config.Dispatch, logger *zap.Logger) []middleware.Middleware {
	mws := []middleware.Middleware{middleware.Logging(logger)}
	if cfg.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(cfg.RateLimit, cfg.Burst))
	}
	if cfg.Timing {
		mws = append(mws, middleware.Timing())
	}
	return mws
}

func etcdConfig(cfg config.Directory, logger *zap.Logger) registry.EtcdConfig {
	return registry.EtcdConfig{
		Endpoints:   cfg.Endpoints,
		Prefix:      cfg.Prefix,
		TTL:         cfg.TTL,
		Process:     cfg.Process,
		DialTimeout: cfg.DialTimeout.Duration,
		Logger:      logger,
	}
}

func (b *bridge) Close() error {
	if b.directory == nil {
		return nil
	}
	return b.directory.Close()
}
