package registry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/toolweave-ai/sdk/component"
	"github.com/toolweave-ai/sdk/tool"
)

// EtcdConfig configures the etcd-backed registry.
type EtcdConfig struct {
	// Endpoints lists the etcd cluster members, e.g. ["localhost:2379"].
	Endpoints []string `json:"endpoints" yaml:"endpoints"`

	// Namespace prefixes every registry key. Specs are stored under
	// /{namespace}/tools/{id}. Defaults to "toolweave".
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`

	// LeaseTTL is the registration lease time-to-live in seconds. A spec
	// whose owner stops renewing its lease is removed automatically.
	// Defaults to 30.
	LeaseTTL int `json:"lease_ttl,omitempty" yaml:"lease_ttl,omitempty"`

	// TLS enables mutual TLS towards etcd. Nil disables TLS.
	TLS *TLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// TLSConfig holds certificate paths for mutual TLS towards etcd.
type TLSConfig struct {
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file" yaml:"ca_file"`
}

// clientConfig builds a tls.Config from the certificate paths.
func (c *TLSConfig) clientConfig() (*tls.Config, error) {
	if c.CertFile == "" || c.KeyFile == "" || c.CAFile == "" {
		return nil, errors.New("registry: tls requires cert_file, key_file, and ca_file")
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to load client certificate: %w", err)
	}

	caData, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to read CA certificate: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caData) {
		return nil, errors.New("registry: failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Etcd is an etcd-backed Registry.
//
// Each registered spec is stored under a lease that a background goroutine
// renews every LeaseTTL/3. If the registering process crashes, the lease
// expires and the spec disappears from the registry, so workers never resolve
// specs whose owner is gone.
//
// All methods are safe for concurrent use.
type Etcd struct {
	client    *clientv3.Client
	namespace string
	ttl       int

	mu        sync.Mutex
	leases    map[string]clientv3.LeaseID
	cancelFns map[string]context.CancelFunc
	wg        sync.WaitGroup
	closed    bool
	done      chan struct{}
}

// NewEtcd connects to etcd and verifies connectivity.
func NewEtcd(cfg EtcdConfig) (*Etcd, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("registry: etcd endpoints cannot be empty")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "toolweave"
	}
	ttl := cfg.LeaseTTL
	if ttl <= 0 {
		ttl = 30
	}

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	}
	if cfg.TLS != nil {
		tlsConfig, err := cfg.TLS.clientConfig()
		if err != nil {
			return nil, err
		}
		clientCfg.TLS = tlsConfig
	}

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := cli.Get(ctx, "health-check"); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		cli.Close()
		return nil, fmt.Errorf("registry: etcd health check failed: %w", err)
	}

	return &Etcd{
		client:    cli,
		namespace: namespace,
		ttl:       ttl,
		leases:    make(map[string]clientv3.LeaseID),
		cancelFns: make(map[string]context.CancelFunc),
		done:      make(chan struct{}),
	}, nil
}

// Register stores the spec under a fresh lease and starts its keepalive.
// Re-registering an id replaces the entry and restarts the keepalive.
func (r *Etcd) Register(ctx context.Context, spec *tool.Spec) error {
	if spec == nil {
		return errors.New("registry: spec cannot be nil")
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	data, err := component.MarshalSpecJSON(spec)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	if cancel, ok := r.cancelFns[spec.ID]; ok {
		cancel()
		delete(r.cancelFns, spec.ID)
	}

	lease, err := r.client.Grant(ctx, int64(r.ttl))
	if err != nil {
		return fmt.Errorf("registry: failed to create lease: %w", err)
	}

	if _, err := r.client.Put(ctx, r.key(spec.ID), string(data), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: failed to register spec: %w", err)
	}

	r.leases[spec.ID] = lease.ID

	keepaliveCtx, cancel := context.WithCancel(context.Background())
	r.cancelFns[spec.ID] = cancel
	r.wg.Add(1)
	go r.keepalive(keepaliveCtx, lease.ID, spec.ID)

	return nil
}

// Deregister revokes the spec's lease, deleting its entry.
func (r *Etcd) Deregister(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	if cancel, ok := r.cancelFns[id]; ok {
		cancel()
		delete(r.cancelFns, id)
	}

	leaseID, ok := r.leases[id]
	if !ok {
		// Not registered by this client; delete the key directly in case
		// another process left it behind.
		if _, err := r.client.Delete(ctx, r.key(id)); err != nil {
			return fmt.Errorf("registry: failed to deregister spec: %w", err)
		}
		return nil
	}

	if _, err := r.client.Revoke(ctx, leaseID); err != nil {
		return fmt.Errorf("registry: failed to revoke lease: %w", err)
	}
	delete(r.leases, id)
	return nil
}

// Get fetches and decodes the spec registered under id.
func (r *Etcd) Get(ctx context.Context, id string) (*tool.Spec, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}

	resp, err := r.client.Get(ctx, r.key(id))
	if err != nil {
		return nil, fmt.Errorf("registry: failed to fetch spec: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}
	return component.UnmarshalSpecJSON(resp.Kvs[0].Value)
}

// List returns descriptors for every spec in the namespace, sorted by id.
func (r *Etcd) List(ctx context.Context) ([]tool.Descriptor, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}

	resp, err := r.client.Get(ctx, r.prefix(), clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("registry: failed to list specs: %w", err)
	}

	out := make([]tool.Descriptor, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		spec, err := component.UnmarshalSpecJSON(kv.Value)
		if err != nil {
			// Skip entries written by incompatible versions.
			continue
		}
		out = append(out, tool.ToDescriptor(spec))
	}
	return out, nil
}

// Watch emits the spec under id on every change, starting with the current
// state. A nil spec means the id was deregistered or its lease expired.
func (r *Etcd) Watch(ctx context.Context, id string) (<-chan *tool.Spec, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}

	ch := make(chan *tool.Spec, 1)

	current, err := r.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	ch <- current

	watchChan := r.client.Watch(ctx, r.key(id))

	r.mu.Lock()
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case resp, ok := <-watchChan:
				if !ok || resp.Err() != nil {
					return
				}
				for _, ev := range resp.Events {
					var update *tool.Spec
					if ev.Type == clientv3.EventTypePut {
						spec, err := component.UnmarshalSpecJSON(ev.Kv.Value)
						if err != nil {
							continue
						}
						update = spec
					}
					select {
					case ch <- update:
					case <-ctx.Done():
						return
					case <-r.done:
						return
					}
				}
			}
		}
	}()

	return ch, nil
}

// Close stops all keepalives and watches and closes the etcd client.
func (r *Etcd) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for _, cancel := range r.cancelFns {
		cancel()
	}
	r.cancelFns = make(map[string]context.CancelFunc)
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	return r.client.Close()
}

// keepalive renews the lease every TTL/3 until canceled or the lease dies.
func (r *Etcd) keepalive(ctx context.Context, leaseID clientv3.LeaseID, id string) {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Duration(r.ttl) * time.Second / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			if _, err := r.client.KeepAliveOnce(context.Background(), leaseID); err != nil {
				r.mu.Lock()
				delete(r.leases, id)
				delete(r.cancelFns, id)
				r.mu.Unlock()
				return
			}
		}
	}
}

func (r *Etcd) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Etcd) key(id string) string {
	return fmt.Sprintf("/%s/tools/%s", r.namespace, id)
}

func (r *Etcd) prefix() string {
	return fmt.Sprintf("/%s/tools/", r.namespace)
}
