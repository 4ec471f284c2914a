// Package registry provides fleet discovery for distributed hashing nodes.
//
// Digests are only comparable between nodes canonicalizing with the same
// profile. The registry makes that precondition observable: every hashing
// node registers itself with the name, version, and checksum of its active
// profile, stays present through an etcd lease with keepalive, and drops
// out automatically when it crashes. ProfileSkew groups the live fleet by
// profile checksum, so configuration drift shows up as more than one group.
package registry

import (
	"context"
	"sort"
	"time"

	"github.com/stableprint/sdk/profile"
)

// NodeInfo describes a registered hashing node.
//
// Multiple instances of the same logical node can run simultaneously, each
// with a unique InstanceID.
type NodeInfo struct {
	// Name is the logical node name (e.g., "edge-collector").
	Name string `json:"name"`

	// InstanceID uniquely identifies this instance (typically a UUID).
	InstanceID string `json:"instance_id"`

	// Address is where the node can be reached, "host:port".
	Address string `json:"address"`

	// Version is the node software version.
	Version string `json:"version"`

	// ProfileName, ProfileVersion, and ProfileChecksum identify the
	// canonicalization profile the node hashes with. Nodes with different
	// checksums produce incomparable digests.
	ProfileName     string `json:"profile_name"`
	ProfileVersion  string `json:"profile_version"`
	ProfileChecksum string `json:"profile_checksum"`

	// Labels carries deployment metadata (region, pop, tier).
	Labels map[string]string `json:"labels,omitempty"`

	// StartedAt is when this instance started.
	StartedAt time.Time `json:"started_at"`
}

// NewNodeInfo builds a NodeInfo for a node hashing with the given profile.
// The profile's checksum is computed here so registration and drift
// detection cannot disagree about it.
func NewNodeInfo(name, instanceID, address, version string, p *profile.Profile) (NodeInfo, error) {
	checksum, err := p.Checksum()
	if err != nil {
		return NodeInfo{}, err
	}
	return NodeInfo{
		Name:            name,
		InstanceID:      instanceID,
		Address:         address,
		Version:         version,
		ProfileName:     p.Name,
		ProfileVersion:  p.Version,
		ProfileChecksum: checksum,
		StartedAt:       time.Now().UTC(),
	}, nil
}

// Registry defines node registration and fleet discovery.
//
// Implementations must be safe for concurrent use. Registrations are
// lease-backed: a node that stops renewing disappears from discovery after
// the TTL elapses.
type Registry interface {
	// Register adds this node instance to the registry and keeps its
	// lease alive in the background. Re-registering the same InstanceID
	// updates the entry.
	Register(ctx context.Context, info NodeInfo) error

	// Deregister removes this node instance. Deregistering an unknown
	// instance is a no-op.
	Deregister(ctx context.Context, info NodeInfo) error

	// Discover returns all live instances of a named node, in arbitrary
	// order. The slice may be empty.
	Discover(ctx context.Context, name string) ([]NodeInfo, error)

	// All returns every live instance in the fleet.
	All(ctx context.Context) ([]NodeInfo, error)

	// Watch emits the current instance list for a named node whenever it
	// changes. The initial state is sent immediately. The channel closes
	// when the context ends or the registry is closed.
	Watch(ctx context.Context, name string) (<-chan []NodeInfo, error)

	// Close releases resources and stops all background goroutines.
	Close() error
}

// Config holds registry connection configuration.
type Config struct {
	// Endpoints is the list of etcd endpoints,
	// e.g. ["host1:2379", "host2:2379"].
	Endpoints []string `json:"endpoints"`

	// Namespace is the etcd key prefix for all fleet entries. Nodes are
	// stored under /{namespace}/nodes/{name}/{instance-id}.
	// Default: "stableprint".
	Namespace string `json:"namespace"`

	// TTL is the lease time-to-live in seconds. A node that misses
	// renewals for this long drops out of discovery. Default: 30.
	TTL int `json:"ttl"`

	// TLS holds certificate configuration for secure etcd communication.
	// If nil, TLS is disabled.
	TLS *TLSConfig `json:"tls"`
}

// TLSConfig holds TLS certificate configuration for mutual TLS with etcd.
type TLSConfig struct {
	// Enabled determines whether TLS is active. If false, the other
	// fields are ignored.
	Enabled bool `json:"enabled"`

	// CertFile is the path to the client certificate (PEM).
	CertFile string `json:"cert_file"`

	// KeyFile is the path to the client private key (PEM).
	KeyFile string `json:"key_file"`

	// CAFile is the path to the certificate authority bundle (PEM) used
	// to verify the etcd server.
	CAFile string `json:"ca_file"`
}

// SkewReport groups live nodes by the profile checksum they hash with. One
// group means the fleet canonicalizes uniformly; more than one means some
// nodes produce incomparable digests.
type SkewReport struct {
	// Groups maps profile checksum to the nodes hashing with it.
	Groups map[string][]NodeInfo `json:"groups"`

	// Total is the number of nodes examined.
	Total int `json:"total"`
}

// ProfileSkew builds a SkewReport from a fleet snapshot.
func ProfileSkew(nodes []NodeInfo) SkewReport {
	groups := make(map[string][]NodeInfo)
	for _, node := range nodes {
		groups[node.ProfileChecksum] = append(groups[node.ProfileChecksum], node)
	}
	return SkewReport{Groups: groups, Total: len(nodes)}
}

// Uniform reports whether every node hashes with the same profile.
func (r SkewReport) Uniform() bool {
	return len(r.Groups) <= 1
}

// Checksums returns the distinct profile checksums, sorted.
func (r SkewReport) Checksums() []string {
	out := make([]string, 0, len(r.Groups))
	for checksum := range r.Groups {
		out = append(out, checksum)
	}
	sort.Strings(out)
	return out
}

// Majority returns the checksum shared by the most nodes and that group's
// size. Ties break to the lexicographically smaller checksum. An empty
// report returns ("", 0).
func (r SkewReport) Majority() (string, int) {
	best, size := "", 0
	for _, checksum := range r.Checksums() {
		if n := len(r.Groups[checksum]); n > size {
			best, size = checksum, n
		}
	}
	return best, size
}

// Outliers returns every node outside the majority group, sorted by name
// then instance ID. A uniform fleet has none.
func (r SkewReport) Outliers() []NodeInfo {
	majority, _ := r.Majority()
	var out []NodeInfo
	for checksum, nodes := range r.Groups {
		if checksum == majority {
			continue
		}
		out = append(out, nodes...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].InstanceID < out[j].InstanceID
	})
	return out
}
