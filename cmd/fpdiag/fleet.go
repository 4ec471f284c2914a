package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sdk "github.com/stableprint/sdk"
	"github.com/stableprint/sdk/registry"
)

var fleetName string

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Inspect the hashing fleet",
	Long: `Inspect hashing nodes registered in the fleet registry.

Nodes register with the profile name, version, and checksum they hash with.
Two nodes whose profiles share a checksum produce comparable digests;
anything else is canonicalization drift.

Endpoints come from --endpoints, FPDIAG_FLEET_ENDPOINTS, or the config file.`,
}

var fleetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered hashing nodes",
	Long: `List every node currently registered in the fleet, with the profile each
one hashes with.

Examples:
  fpdiag fleet list --endpoints etcd.internal:2379
  fpdiag fleet list --name edge-hasher -o json`,
	Run: runFleetList,
}

var fleetSkewCmd = &cobra.Command{
	Use:   "skew",
	Short: "Report canonicalization drift across the fleet",
	Long: `Group live nodes by profile checksum and report drift. A uniform fleet has
one group; outliers hash with a different profile and produce incomparable
digests.

Exits non-zero when the fleet is not uniform.

Example:
  fpdiag fleet skew --endpoints etcd.internal:2379`,
	Run: runFleetSkew,
}

func init() {
	fleetCmd.PersistentFlags().StringSlice("endpoints", nil, "Registry endpoints (host:port)")
	fleetCmd.PersistentFlags().String("namespace", "", "Registry namespace (default: stableprint)")
	fleetListCmd.Flags().StringVar(&fleetName, "name", "", "Only list nodes with this name")

	_ = viper.BindPFlag("fleet.endpoints", fleetCmd.PersistentFlags().Lookup("endpoints"))
	_ = viper.BindPFlag("fleet.namespace", fleetCmd.PersistentFlags().Lookup("namespace"))

	fleetCmd.AddCommand(fleetListCmd)
	fleetCmd.AddCommand(fleetSkewCmd)
	rootCmd.AddCommand(fleetCmd)
}

// fleetClient connects to the registry named by the layered config.
func fleetClient() (*registry.Client, error) {
	cfg := registry.Config{
		Endpoints: viper.GetStringSlice("fleet.endpoints"),
		Namespace: viper.GetString("fleet.namespace"),
	}
	return registry.NewClient(cfg, registry.WithLogger(newLogger()))
}

func fleetNodes(name string) []registry.NodeInfo {
	client, err := fleetClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sdk.CloseWithLog(client, newLogger(), "fleet registry")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var nodes []registry.NodeInfo
	if name != "" {
		nodes, err = client.Discover(ctx, name)
	} else {
		nodes, err = client.All(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return nodes
}

func runFleetList(cmd *cobra.Command, args []string) {
	nodes := fleetNodes(fleetName)

	if jsonOutput() {
		printJSON(nodes)
		return
	}

	if len(nodes) == 0 {
		fmt.Println("No nodes registered.")
		return
	}

	for _, node := range nodes {
		fmt.Printf("%-20s %-12s %-22s %-10s %s@%s (%s)\n",
			node.Name, node.InstanceID, node.Address, node.Version,
			node.ProfileName, node.ProfileVersion, shortChecksum(node.ProfileChecksum))
	}
}

func runFleetSkew(cmd *cobra.Command, args []string) {
	nodes := fleetNodes("")
	report := registry.ProfileSkew(nodes)

	if jsonOutput() {
		printJSON(report)
	} else {
		printSkewText(report)
	}

	if !report.Uniform() {
		os.Exit(1)
	}
}

func printSkewText(report registry.SkewReport) {
	if report.Total == 0 {
		fmt.Println("No nodes registered.")
		return
	}

	if report.Uniform() {
		checksum, _ := report.Majority()
		fmt.Printf("Fleet is uniform: %d node(s) on profile %s\n", report.Total, shortChecksum(checksum))
		return
	}

	majority, size := report.Majority()
	fmt.Printf("DRIFT: %d node(s) across %d profile group(s)\n", report.Total, len(report.Groups))
	fmt.Printf("Majority: %s (%d node(s))\n", shortChecksum(majority), size)

	fmt.Printf("\nOutliers:\n")
	for _, node := range report.Outliers() {
		fmt.Printf("  - %s/%s at %s: %s@%s (%s)\n",
			node.Name, node.InstanceID, node.Address,
			node.ProfileName, node.ProfileVersion, shortChecksum(node.ProfileChecksum))
	}
}

func shortChecksum(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}
