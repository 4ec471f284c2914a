package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	sdk "github.com/stableprint/sdk"
	"github.com/stableprint/sdk/bag"
	"github.com/stableprint/sdk/parser"
)

var hashDebug bool

var hashCmd = &cobra.Command{
	Use:   "hash <observation.json>",
	Short: "Hash an observation file",
	Long: `Hash an observation file and print its digest.

The file holds one attribute bag as a JSON object. The digest is 64 lowercase
hex characters; equal observations up to declared noise yield equal digests.

Examples:
  # Print the digest
  fpdiag hash observation.json

  # Full pipeline trace: every normalization step, fallback, and
  # validation issue
  fpdiag hash observation.json --debug -o json`,
	Args: cobra.ExactArgs(1),
	Run:  runHash,
}

func init() {
	hashCmd.Flags().BoolVar(&hashDebug, "debug", false, "Record and print the full pipeline trace")
	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, args []string) {
	obs, err := parser.ParseJSONFile[bag.Bag](args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine, err := newEngine()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if hashDebug {
		result, err := engine.GenerateWithDebug(ctx, *obs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput() {
			printJSON(result)
			return
		}
		printDebugText(result)
		return
	}

	digest, err := engine.Generate(ctx, *obs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput() {
		printJSON(map[string]string{"digest": digest})
		return
	}
	fmt.Println(digest)
}

func printDebugText(result *sdk.DebugResult) {
	fmt.Printf("Digest:      %s\n", result.Digest)
	fmt.Printf("Duration:    %s\n", result.ProcessingTime)
	fmt.Printf("Fallbacks:   %d\n", len(result.Fallbacks))
	fmt.Printf("Issues:      %d\n", len(result.ValidationIssues))
	fmt.Printf("Steps:       %d\n", len(result.Session.Steps))

	if len(result.Fallbacks) > 0 {
		fmt.Printf("\nFallbacks applied:\n")
		for field, rec := range result.Fallbacks {
			fmt.Printf("  - %s: %v (%s)\n", field, rec.FallbackValue, rec.Reason)
		}
	}

	if len(result.ValidationIssues) > 0 {
		fmt.Printf("\nValidation issues:\n")
		for _, issue := range result.ValidationIssues {
			fmt.Printf("  - %s\n", issue.String())
		}
	}

	if len(result.Session.Steps) > 0 {
		fmt.Printf("\nNormalization steps:\n")
		for _, step := range result.Session.Steps {
			fmt.Printf("  - %-22s %s\n", step.Type, step.Property)
		}
	}

	fmt.Printf("\nSerialized form:\n%s\n", result.Serialized)
}
