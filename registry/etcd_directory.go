package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	DefaultPrefix = "/native-binder/"
	DefaultTTL    = 10
)

// Instance describes one process serving a channel.
type Instance struct {
	Process string `json:"process"`
	Channel string `json:"channel"`
	Version string `json:"version,omitempty"`
}

type EtcdConfig struct {
	Endpoints   []string
	Prefix      string
	TTL         int64 // seconds
	Process     string
	Version     string
	DialTimeout time.Duration
	Logger      *zap.Logger
}

// EtcdDirectory implements Directory on etcd v3. It publishes the channels a
// process serves so tooling can find which process owns a channel:
//
//	Key:   {prefix}{channel}/{process}
//	Value: JSON-encoded Instance
//
// Entries hang off a TTL lease kept alive in the background. If the process
// dies the lease expires and the entry disappears on its own.
type EtcdDirectory struct {
	client  *clientv3.Client
	cfg     EtcdConfig
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	leases map[string]lease // channel -> lease held for it
}

type lease struct {
	id     clientv3.LeaseID
	cancel context.CancelFunc
}

func NewEtcdDirectory(cfg EtcdConfig) (*EtcdDirectory, error) {
	if cfg.Process == "" {
		return nil, fmt.Errorf("registry: etcd directory needs a process name")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, err
	}
	return &EtcdDirectory{
		client:  c,
		cfg:     cfg,
		logger:  logger,
		timeout: cfg.DialTimeout,
		leases:  make(map[string]lease),
	}, nil
}

func (d *EtcdDirectory) key(channel string) string {
	return d.cfg.Prefix + channel + "/" + d.cfg.Process
}

// Advertise puts this process under channel with a fresh lease and keeps the
// lease alive until Withdraw or Close.
func (d *EtcdDirectory) Advertise(channel string) error {
	return d.advertise(d.client, channel)
}

// leaseKV is the part of the etcd client Advertise needs.
type leaseKV interface {
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
	KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
}

func (d *EtcdDirectory) advertise(kv leaseKV, channel string) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	grant, err := kv.Grant(ctx, d.cfg.TTL)
	if err != nil {
		return err
	}
	// A lease that never gets tracked must not linger until its TTL.
	defer func() {
		if err == nil {
			return
		}
		rctx, rcancel := context.WithTimeout(context.Background(), d.timeout)
		defer rcancel()
		if _, rerr := kv.Revoke(rctx, grant.ID); rerr != nil {
			d.logger.Debug("revoke lease", zap.Int64("lease", int64(grant.ID)), zap.Error(rerr))
		}
	}()

	val, err := json.Marshal(Instance{Process: d.cfg.Process, Channel: channel, Version: d.cfg.Version})
	if err != nil {
		return err
	}
	if _, err := kv.Put(ctx, d.key(channel), string(val), clientv3.WithLease(grant.ID)); err != nil {
		return err
	}

	// KeepAlive outlives this call, so it gets its own context.
	kaCtx, kaCancel := context.WithCancel(context.Background())
	ch, err := kv.KeepAlive(kaCtx, grant.ID)
	if err != nil {
		kaCancel()
		return err
	}
	go func() {
		for range ch {
		}
	}()

	d.mu.Lock()
	old, had := d.leases[channel]
	d.leases[channel] = lease{id: grant.ID, cancel: kaCancel}
	d.mu.Unlock()
	if had {
		d.revoke(old)
	}

	d.logger.Debug("channel advertised", zap.String("channel", channel), zap.String("key", d.key(channel)))
	return nil
}

// Withdraw deletes this process's entry for channel and drops its lease.
func (d *EtcdDirectory) Withdraw(channel string) error {
	d.mu.Lock()
	l, ok := d.leases[channel]
	delete(d.leases, channel)
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if _, err := d.client.Delete(ctx, d.key(channel)); err != nil {
		return err
	}
	if ok {
		d.revoke(l)
	}
	return nil
}

func (d *EtcdDirectory) revoke(l lease) {
	l.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if _, err := d.client.Revoke(ctx, l.id); err != nil {
		d.logger.Debug("revoke lease", zap.Int64("lease", int64(l.id)), zap.Error(err))
	}
}

// Discover lists every process currently advertising channel.
func (d *EtcdDirectory) Discover(ctx context.Context, channel string) ([]Instance, error) {
	resp, err := d.client.Get(ctx, d.cfg.Prefix+channel+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue // skip malformed entries
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch emits the full instance list for channel every time it changes,
// until ctx is done.
func (d *EtcdDirectory) Watch(ctx context.Context, channel string) <-chan []Instance {
	out := make(chan []Instance, 1)
	go func() {
		defer close(out)
		for range d.client.Watch(ctx, d.cfg.Prefix+channel+"/", clientv3.WithPrefix()) {
			instances, err := d.Discover(ctx, channel)
			if err != nil {
				d.logger.Debug("discover after watch event", zap.String("channel", channel), zap.Error(err))
				continue
			}
			select {
			case out <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close withdraws every advertised channel and closes the etcd client.
func (d *EtcdDirectory) Close() error {
	d.mu.Lock()
	channels := make([]string, 0, len(d.leases))
	for ch := range d.leases {
		channels = append(channels, ch)
	}
	d.mu.Unlock()

	for _, ch := range channels {
		if err := d.Withdraw(ch); err != nil {
			d.logger.Warn("withdraw on close", zap.String("channel", ch), zap.Error(err))
		}
	}
	return d.client.Close()
}
