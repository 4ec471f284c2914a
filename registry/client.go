package registry

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ErrClosed is returned by every method after Close.
var ErrClosed = errors.New("registry: client closed")

// Client implements Registry against an etcd cluster.
//
// The client handles lease management automatically, renewing leases every
// TTL/3 to maintain node presence. All methods are safe for concurrent
// use.
//
// Example usage:
//
//	cfg := registry.Config{
//	    Endpoints: []string{"localhost:2379"},
//	    TTL:       30,
//	}
//	client, err := registry.NewClient(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
type Client struct {
	client    *clientv3.Client
	namespace string
	ttl       int
	logger    *slog.Logger

	// Lease tracking for keepalive
	mu         sync.RWMutex
	leases     map[string]clientv3.LeaseID // key: instance ID
	cancelFns  map[string]context.CancelFunc
	wg         sync.WaitGroup
	closed     bool
	closedChan chan struct{}
}

// ClientOption configures a Client during NewClient.
type ClientOption func(*Client)

// WithLogger sets the logger for background lease events. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a registry client from the provided configuration,
// establishes a connection to the etcd cluster, and verifies connectivity.
//
// The client must be closed with Close() to release resources and stop
// background keepalive goroutines.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("registry endpoints cannot be empty")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "stableprint"
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30
	}

	clientCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		tlsConfig, err := clientTLS(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		clientCfg.TLS = tlsConfig
	}

	cli, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Verify connectivity with a quick health check
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err = cli.Get(ctx, "health-check")
	if err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	c := &Client{
		client:     cli,
		namespace:  namespace,
		ttl:        ttl,
		logger:     slog.Default(),
		leases:     make(map[string]clientv3.LeaseID),
		cancelFns:  make(map[string]context.CancelFunc),
		closedChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewClientFromEnv creates a registry client from the
// STABLEPRINT_REGISTRY_ENDPOINTS environment variable, a comma-separated
// list of etcd endpoints.
//
// If the variable is not set, this returns (nil, nil): the node works but
// is not discoverable. That is deliberate so single-node deployments need
// no registry at all.
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	endpoints := os.Getenv("STABLEPRINT_REGISTRY_ENDPOINTS")
	if endpoints == "" {
		return nil, nil
	}

	endpointList := strings.Split(endpoints, ",")
	for i, ep := range endpointList {
		endpointList[i] = strings.TrimSpace(ep)
	}

	return NewClient(Config{Endpoints: endpointList}, opts...)
}

// Register adds this node instance to the registry.
//
// The node is discoverable immediately and stays registered while the
// lease renews. Re-registering the same InstanceID updates the entry and
// restarts its keepalive.
func (c *Client) Register(ctx context.Context, info NodeInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	// Cancel existing keepalive if re-registering
	if cancelFn, exists := c.cancelFns[info.InstanceID]; exists {
		cancelFn()
		delete(c.cancelFns, info.InstanceID)
	}

	leaseResp, err := c.client.Grant(ctx, int64(c.ttl))
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal node info: %w", err)
	}

	key := c.buildKey(info.Name, info.InstanceID)
	_, err = c.client.Put(ctx, key, string(data), clientv3.WithLease(leaseResp.ID))
	if err != nil {
		return fmt.Errorf("failed to register node: %w", err)
	}

	c.leases[info.InstanceID] = leaseResp.ID

	keepaliveCtx, cancel := context.WithCancel(context.Background())
	c.cancelFns[info.InstanceID] = cancel

	c.wg.Add(1)
	go c.keepalive(keepaliveCtx, leaseResp.ID, info.InstanceID)

	return nil
}

// Deregister removes this node instance from the registry by revoking its
// lease. Deregistering an unknown instance is a no-op.
func (c *Client) Deregister(ctx context.Context, info NodeInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if cancelFn, exists := c.cancelFns[info.InstanceID]; exists {
		cancelFn()
		delete(c.cancelFns, info.InstanceID)
	}

	leaseID, exists := c.leases[info.InstanceID]
	if !exists {
		return nil
	}

	_, err := c.client.Revoke(ctx, leaseID)
	if err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}

	delete(c.leases, info.InstanceID)

	return nil
}

// Discover finds all live instances of a named node.
func (c *Client) Discover(ctx context.Context, name string) ([]NodeInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	return c.list(ctx, c.nodePrefix(name))
}

// All returns every live instance in the fleet.
func (c *Client) All(ctx context.Context) ([]NodeInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}
	return c.list(ctx, c.fleetPrefix())
}

// list queries a key prefix without holding locks beyond the caller's.
func (c *Client) list(ctx context.Context, prefix string) ([]NodeInfo, error) {
	resp, err := c.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover nodes: %w", err)
	}

	nodes := make([]NodeInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var info NodeInfo
		if err := json.Unmarshal(kv.Value, &info); err != nil {
			// Skip invalid entries
			continue
		}
		nodes = append(nodes, info)
	}

	return nodes, nil
}

// Watch returns a channel that receives the instance list for a named node
// whenever it changes. The initial state is sent immediately. The channel
// is closed when the context is canceled or Close() is called.
func (c *Client) Watch(ctx context.Context, name string) (<-chan []NodeInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrClosed
	}

	prefix := c.nodePrefix(name)

	ch := make(chan []NodeInfo, 1)
	nodes, err := c.list(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ch <- nodes

	watchChan := c.client.Watch(ctx, prefix, clientv3.WithPrefix())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closedChan:
				return
			case watchResp, ok := <-watchChan:
				if !ok {
					return
				}
				if watchResp.Err() != nil {
					c.logger.Warn("fleet watch failed",
						"node", name,
						"error", watchResp.Err())
					return
				}

				// Fetch current state after any change
				nodes, err := c.list(context.Background(), prefix)
				if err != nil {
					continue
				}

				select {
				case ch <- nodes:
				case <-ctx.Done():
					return
				case <-c.closedChan:
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close releases all resources and stops background goroutines. After
// Close, all other methods return ErrClosed. Active watches are terminated
// and their channels closed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	for _, cancel := range c.cancelFns {
		cancel()
	}
	c.cancelFns = make(map[string]context.CancelFunc)

	close(c.closedChan)
	c.mu.Unlock()

	c.wg.Wait()

	return c.client.Close()
}

// keepalive renews the lease every TTL/3 to maintain node presence. It
// stops when the context is canceled, the client closes, or the lease
// becomes invalid.
func (c *Client) keepalive(ctx context.Context, leaseID clientv3.LeaseID, instanceID string) {
	defer c.wg.Done()

	interval := time.Duration(c.ttl) * time.Second / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closedChan:
			return
		case <-ticker.C:
			_, err := c.client.KeepAliveOnce(context.Background(), leaseID)
			if err != nil {
				c.logger.Warn("lease renewal failed, node will drop from discovery",
					"instance_id", instanceID,
					"error", err)
				c.mu.Lock()
				delete(c.leases, instanceID)
				delete(c.cancelFns, instanceID)
				c.mu.Unlock()
				return
			}
		}
	}
}

// buildKey constructs the etcd key for a node instance:
// /namespace/nodes/name/instance-id
func (c *Client) buildKey(name, instanceID string) string {
	return fmt.Sprintf("/%s/nodes/%s/%s", c.namespace, name, instanceID)
}

func (c *Client) nodePrefix(name string) string {
	return fmt.Sprintf("/%s/nodes/%s/", c.namespace, name)
}

func (c *Client) fleetPrefix() string {
	return fmt.Sprintf("/%s/nodes/", c.namespace)
}

// clientTLS builds a mutual-TLS config for the etcd connection.
func clientTLS(cfg *TLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" {
		return nil, fmt.Errorf("TLS cert file is required when TLS is enabled")
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("TLS key file is required when TLS is enabled")
	}
	if cfg.CAFile == "" {
		return nil, fmt.Errorf("TLS CA file is required when TLS is enabled")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caData, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caData) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
