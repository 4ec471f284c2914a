// Package health provides reusable dependency probes for hashing nodes:
// TCP endpoints (observation store, fleet registry, collectors), files on
// disk (profiles), and arbitrary custom checks, with a Combine roll-up.
// `fpdiag health` renders these directly.
package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/stableprint/sdk/types"
)

// EndpointCheck verifies TCP connectivity to a host and port. The provided
// context controls timeout and cancellation; a nil context gets a 5 second
// default.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	status := health.EndpointCheck(ctx, "redis.internal", 6379)
//	if status.IsUnhealthy() {
//	    log.Println("observation store unreachable")
//	}
func EndpointCheck(ctx context.Context, host string, port int) types.HealthStatus {
	if host == "" {
		return types.NewUnhealthyStatus("host cannot be empty", nil)
	}

	if port <= 0 || port > 65535 {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("invalid port number: %d", port),
			map[string]any{"port": port},
		)
	}

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("failed to connect to %s", address),
			map[string]any{
				"host":  host,
				"port":  port,
				"error": err.Error(),
			},
		)
	}

	conn.Close()

	return types.NewHealthyStatus(
		fmt.Sprintf("successfully connected to %s", address),
	)
}

// FileCheck verifies that a file or directory exists at the specified
// path.
//
// Example:
//
//	status := health.FileCheck("/etc/stableprint/profile.yaml")
//	if status.IsUnhealthy() {
//	    log.Fatal("active profile not found")
//	}
func FileCheck(path string) types.HealthStatus {
	if path == "" {
		return types.NewUnhealthyStatus("path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewUnhealthyStatus(
				fmt.Sprintf("path '%s' does not exist", path),
				map[string]any{
					"path": path,
				},
			)
		}

		return types.NewUnhealthyStatus(
			fmt.Sprintf("failed to stat path '%s'", path),
			map[string]any{
				"path":  path,
				"error": err.Error(),
			},
		)
	}

	fileType := "file"
	if info.IsDir() {
		fileType = "directory"
	}

	return types.NewHealthyStatus(
		fmt.Sprintf("%s '%s' exists", fileType, path),
	)
}

// ProbeCheck runs a custom probe and maps its error to a status. It exists
// so dependencies without a TCP or file surface (a Store round-trip, a
// registry query) plug into the same roll-up.
//
// Example:
//
//	status := health.ProbeCheck(ctx, "observation store", func(ctx context.Context) error {
//	    _, err := observations.Keys(ctx)
//	    return err
//	})
func ProbeCheck(ctx context.Context, name string, probe func(context.Context) error) types.HealthStatus {
	if name == "" {
		name = "unnamed probe"
	}
	if probe == nil {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("probe '%s' is nil", name),
			map[string]any{"probe": name},
		)
	}

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	if err := probe(ctx); err != nil {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("probe '%s' failed", name),
			map[string]any{
				"probe": name,
				"error": err.Error(),
			},
		)
	}

	return types.NewHealthyStatus(
		fmt.Sprintf("probe '%s' passed", name),
	)
}

// Combine aggregates multiple health checks into a single status.
// The result follows this priority:
//   - If any check is unhealthy, the result is unhealthy
//   - If any check is degraded (and none unhealthy), the result is degraded
//   - If all checks are healthy, the result is healthy
//
// Example:
//
//	status := health.Combine(
//	    health.EndpointCheck(ctx, "redis.internal", 6379),
//	    health.EndpointCheck(ctx, "etcd.internal", 2379),
//	    health.FileCheck("/etc/stableprint/profile.yaml"),
//	)
//	if status.IsUnhealthy() {
//	    log.Fatal("node dependencies not met")
//	}
func Combine(checks ...types.HealthStatus) types.HealthStatus {
	if len(checks) == 0 {
		return types.NewHealthyStatus("no checks provided")
	}

	var unhealthyChecks []string
	var degradedChecks []string
	var healthyCount int

	for _, check := range checks {
		switch check.Status {
		case types.StatusUnhealthy:
			msg := check.Message
			if msg == "" {
				msg = "unnamed check"
			}
			unhealthyChecks = append(unhealthyChecks, msg)
		case types.StatusDegraded:
			msg := check.Message
			if msg == "" {
				msg = "unnamed check"
			}
			degradedChecks = append(degradedChecks, msg)
		case types.StatusHealthy:
			healthyCount++
		}
	}

	if len(unhealthyChecks) > 0 {
		return types.NewUnhealthyStatus(
			fmt.Sprintf("%d check(s) failed", len(unhealthyChecks)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthyChecks),
				"degraded":      len(degradedChecks),
				"healthy":       healthyCount,
				"failed_checks": unhealthyChecks,
			},
		)
	}

	if len(degradedChecks) > 0 {
		return types.NewDegradedStatus(
			fmt.Sprintf("%d check(s) degraded", len(degradedChecks)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degradedChecks),
				"healthy":         healthyCount,
				"degraded_checks": degradedChecks,
			},
		)
	}

	return types.NewHealthyStatus(
		fmt.Sprintf("all %d check(s) passed", len(checks)),
	)
}
