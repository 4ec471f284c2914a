package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stableprint/sdk/health"
	"github.com/stableprint/sdk/store"
	"github.com/stableprint/sdk/types"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe configured dependencies",
	Long: `Probe every dependency the config names and roll the results up: the
observation store (store.url), fleet registry endpoints (fleet.endpoints),
extra TCP endpoints (health.endpoints), the active profile file, and any
files listed under health.files.

Exits non-zero when any probe is unhealthy.

Example:
  FPDIAG_STORE_URL=redis://localhost:6379/0 fpdiag health`,
	Run: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

// namedCheck pairs a probe label with its outcome for rendering.
type namedCheck struct {
	Name   string             `json:"name"`
	Status types.HealthStatus `json:"status"`
}

func runHealth(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var checks []namedCheck

	if url := viper.GetString("store.url"); url != "" {
		checks = append(checks, namedCheck{
			Name: "observation store",
			Status: health.ProbeCheck(ctx, "observation store", func(ctx context.Context) error {
				st, err := store.NewRedisStore(store.RedisOptions{URL: url})
				if err != nil {
					return err
				}
				return st.Close()
			}),
		})
	}

	for _, endpoint := range viper.GetStringSlice("fleet.endpoints") {
		checks = append(checks, endpointCheck(ctx, "fleet registry "+endpoint, endpoint))
	}

	for _, endpoint := range viper.GetStringSlice("health.endpoints") {
		checks = append(checks, endpointCheck(ctx, "endpoint "+endpoint, endpoint))
	}

	if path := viper.GetString("profile"); path != "" {
		checks = append(checks, namedCheck{Name: "profile " + path, Status: health.FileCheck(path)})
	}
	for _, path := range viper.GetStringSlice("health.files") {
		checks = append(checks, namedCheck{Name: "file " + path, Status: health.FileCheck(path)})
	}

	if len(checks) == 0 {
		fmt.Fprintln(os.Stderr, "Error: nothing to probe; configure store.url, fleet.endpoints, health.endpoints, or health.files")
		os.Exit(1)
	}

	statuses := make([]types.HealthStatus, len(checks))
	for i, c := range checks {
		statuses[i] = c.Status
	}
	combined := health.Combine(statuses...)

	if jsonOutput() {
		printJSON(map[string]any{
			"checks":   checks,
			"combined": combined,
		})
	} else {
		printHealthText(checks, combined)
	}

	if combined.IsUnhealthy() {
		os.Exit(1)
	}
}

func endpointCheck(ctx context.Context, name, endpoint string) namedCheck {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return namedCheck{
			Name:   name,
			Status: types.NewUnhealthyStatus(err.Error(), map[string]any{"endpoint": endpoint}),
		}
	}
	return namedCheck{Name: name, Status: health.EndpointCheck(ctx, host, port)}
}

// splitEndpoint parses "host:port" into its parts.
func splitEndpoint(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint %q: expected host:port", endpoint)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint %q: port is not a number", endpoint)
	}
	return host, port, nil
}

func printHealthText(checks []namedCheck, combined types.HealthStatus) {
	for _, c := range checks {
		fmt.Printf("  [%-9s] %s: %s\n", c.Status.Status, c.Name, c.Status.Message)
	}
	fmt.Printf("\nOverall: %s (%s)\n", combined.Status, combined.Message)
}
