package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stableprint/sdk/troubleshoot"
)

var suiteCmd = &cobra.Command{
	Use:   "suite <suite.yaml>",
	Short: "Run a hash stability regression suite",
	Long: `Run a declarative regression suite: hash the baseline observation and every
variation, then score each variation's digest equality against its declared
expectation. A normalization regression shows up here as a failed variation.

Suites are YAML or JSON files with a baseline bag and named variations.

Exits non-zero when any variation fails.

Example:
  fpdiag suite chrome-suite.yaml
  fpdiag suite chrome-suite.yaml -o json`,
	Args: cobra.ExactArgs(1),
	Run:  runSuiteCmd,
}

func init() {
	rootCmd.AddCommand(suiteCmd)
}

func runSuiteCmd(cmd *cobra.Command, args []string) {
	suite, err := troubleshoot.LoadSuite(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine, err := newEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	result, err := engine.RunSuite(context.Background(), suite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput() {
		printJSON(result)
	} else {
		printSuiteText(result)
	}

	if !result.Pass() {
		os.Exit(1)
	}
}

func printSuiteText(result *troubleshoot.SuiteResult) {
	fmt.Printf("Suite:    %s\n", result.Suite)
	fmt.Printf("Baseline: %s\n", result.BaselineDigest)
	fmt.Println()

	for _, v := range result.Results {
		status := "PASS"
		if !v.Passed {
			status = "FAIL"
		}
		expectation := "expected stable"
		if !v.ShouldBeStable {
			expectation = "expected unstable"
		}
		fmt.Printf("  [%s] %-30s %s, matched=%t\n", status, v.Name, expectation, v.MatchedBaseline)
	}

	fmt.Printf("\n%d passed, %d failed (%.0f%%)\n", result.Passed, result.Failed, result.PassRate*100)
}
