package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/parser"
	"github.com/stableprint/sdk/stability"
)

var analyzeTop int

var analyzeCmd = &cobra.Command{
	Use:   "analyze <observations.jsonl>",
	Short: "Measure hash stability across an observation population",
	Long: `Analyze a population of observations of the same device: hash every one,
measure digest spread (variation rate, entropy, consistency), and rank the
differences that actually flip the hash.

The input is newline-delimited JSON, one attribute bag per line, as produced
by repeated collection from one device.

Examples:
  fpdiag analyze device-42.jsonl
  fpdiag analyze device-42.jsonl --top 5 -o json`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 10, "Number of common differences to print")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) {
	bags, err := parser.ParseJSONLinesFile[bag.Bag](args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine, err := newEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	report, err := engine.Analyze(context.Background(), bags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput() {
		printJSON(report)
		return
	}
	printStabilityText(report)
}

func printStabilityText(report *stability.Report) {
	verdict := "UNSTABLE"
	if report.Stable() {
		verdict = "STABLE"
	}

	fmt.Printf("Stability:      %s\n", verdict)
	fmt.Printf("Observations:   %d\n", report.Inputs)
	fmt.Printf("Unique hashes:  %d\n", report.UniqueHashes)
	fmt.Printf("Consistency:    %.3f\n", report.Consistency)
	fmt.Printf("Variation rate: %.3f\n", report.VariationRate)
	fmt.Printf("Entropy:        %.3f\n", report.Entropy)
	fmt.Printf("Robustness:     %.3f\n", report.Robustness)
	fmt.Printf("Pairs compared: %d\n", report.PairsCompared)

	if digest, count := report.ModalHash(); digest != "" {
		fmt.Printf("Modal hash:     %s (%d/%d)\n", digest, count, report.Inputs)
	}

	if len(report.CommonDifferences) > 0 {
		fmt.Printf("\nMost common differences:\n")
		limit := analyzeTop
		if limit <= 0 || limit > len(report.CommonDifferences) {
			limit = len(report.CommonDifferences)
		}
		for _, pc := range report.CommonDifferences[:limit] {
			fmt.Printf("  - %-30s %-22s %d pair(s), %.0f%%\n",
				pc.Property, pc.Type, pc.Count, pc.Share*100)
		}
	}
}
