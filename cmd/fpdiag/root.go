package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sdk "github.com/stableprint/sdk"
	"github.com/stableprint/sdk/profile"
)

const version = "0.9.0"

var (
	cfgFile     string
	outputFlag  string
	profileFlag string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "fpdiag",
	Short: "fpdiag - device fingerprint diagnostics",
	Long: `fpdiag inspects the deterministic fingerprint hashing pipeline: it hashes
observation files, explains digest mismatches, measures hash stability across
observation populations, runs declarative regression suites, and reports
canonicalization drift across a hashing fleet.

Configuration is layered: flags override FPDIAG_* environment variables,
which override the fpdiag.yaml config file (current directory or
~/.config/fpdiag).`,
	Version: version,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SetVersionTemplate("fpdiag version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./fpdiag.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "text", "Output format: text or json")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Path to canonicalization profile.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig wires the config layers: flag > FPDIAG_* env > config file.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fpdiag")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "fpdiag"))
		}
	}

	viper.SetEnvPrefix("FPDIAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// newLogger builds the CLI logger. Results go to stdout, so logs go to
// stderr; default level is warn to keep pipelines clean.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadProfile resolves the active canonicalization profile: the configured
// path, or the stock profile when none is set.
func loadProfile() (*profile.Profile, error) {
	path := viper.GetString("profile")
	if path == "" {
		return profile.Default(), nil
	}
	return profile.Load(path)
}

// newEngine builds the hash engine the subcommands share.
func newEngine() (*sdk.Engine, error) {
	prof, err := loadProfile()
	if err != nil {
		return nil, err
	}
	return sdk.New(
		sdk.WithProfile(prof),
		sdk.WithLogger(newLogger()),
	)
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
