package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/diff"
	"github.com/stableprint/sdk/parser"
	"github.com/stableprint/sdk/troubleshoot"
)

var diffDiagnose bool

var diffCmd = &cobra.Command{
	Use:   "diff <a.json> <b.json>",
	Short: "Explain how two observations diverge",
	Long: `Compare two observation files and classify every difference: substantive
changes, shape changes, and the benign classes canonicalization absorbs
(whitespace, encoding, sub-precision noise). Each difference reports whether
it survives into the digest.

Exits non-zero when the digests differ.

Examples:
  # Classified differences with hash-impact verdicts
  fpdiag diff yesterday.json today.json

  # Add ranked root causes and fix suggestions
  fpdiag diff yesterday.json today.json --diagnose -o json`,
	Args: cobra.ExactArgs(2),
	Run:  runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffDiagnose, "diagnose", false, "Include root-cause analysis and recommendations")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) {
	a, err := parser.ParseJSONFile[bag.Bag](args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	b, err := parser.ParseJSONFile[bag.Bag](args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine, err := newEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if diffDiagnose {
		diagnosis := engine.Diagnose(*a, *b)
		if jsonOutput() {
			printJSON(diagnosis)
		} else {
			printDiagnosisText(diagnosis)
		}
		if !diagnosis.Healthy {
			os.Exit(1)
		}
		return
	}

	report := engine.Compare(*a, *b)
	if jsonOutput() {
		printJSON(report)
	} else {
		printReportText(report)
	}
	if !report.HashesMatch {
		os.Exit(1)
	}
}

func printReportText(report *diff.Report) {
	if report.HashesMatch {
		fmt.Printf("Digests: MATCH (%s)\n", report.DigestA)
	} else {
		fmt.Printf("Digests: MISMATCH\n")
		fmt.Printf("  a: %s\n", report.DigestA)
		fmt.Printf("  b: %s\n", report.DigestB)
	}

	if report.Identical {
		fmt.Println("Observations are identical.")
		return
	}

	fmt.Printf("\nDifferences (%d total, %d affect the hash):\n",
		report.Impact.TotalDifferences, report.Impact.HashAffectingCount)
	for _, d := range report.Differences {
		fmt.Printf("  - %s\n", d.String())
	}

	fmt.Printf("\nStability score: %.2f\n", report.Impact.StabilityScore)
}

func printDiagnosisText(diagnosis *troubleshoot.Diagnosis) {
	printReportText(diagnosis.Report)

	if len(diagnosis.RootCauses) > 0 {
		fmt.Printf("\nRoot causes:\n")
		for _, rc := range diagnosis.RootCauses {
			fmt.Printf("  - %s (likelihood %.0f%%): %s\n", rc.Cause, rc.Likelihood*100, rc.Detail)
		}
	}

	if len(diagnosis.Recommendations) > 0 {
		fmt.Printf("\nRecommendations:\n")
		for _, rec := range diagnosis.Recommendations {
			fmt.Printf("  - [%s] %s\n", rec.Trigger, rec.Action)
		}
	}
}
