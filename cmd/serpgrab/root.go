package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"serpgrab/pkg/config"
	"serpgrab/pkg/logger"
	"serpgrab/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	headless   bool
	readiness  bool
	maxCycles  int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serpgrab",
	Short: "Collect search result links and images with a real browser",
	Long: `serpgrab drives a Chrome session through a search engine's result pages and
collects every result link or image reference it sees.

Features:
  - Paginated link collection across all result pages
  - Infinite-scroll image collection with stability detection
  - Image download for inline data: and remote references
  - Manifests that let one run feed another
  - A WebSocket relay for streaming geolocation results to a live map`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetColorEnabled(false)
		}
		if quiet {
			ui.SetQuietMode(true)
		}

		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Parent() == rootCmd {
			ui.PrintBanner()
		}
	},
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "serpgrab %s\n", rootCmd.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Go Version: %s\nOS/Arch: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./serpgrab.yaml or ~/.config/serpgrab/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except results and errors")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "run Chrome without a window")
	rootCmd.PersistentFlags().BoolVar(&readiness, "readiness", true, "poll document readiness instead of fixed sleeps")
	rootCmd.PersistentFlags().IntVar(&maxCycles, "max-cycles", 0, "upper bound on traversal cycles (0 keeps the configured value)")

	rootCmd.SetVersionTemplate(`serpgrab {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves configuration from all sources and initializes the
// global logger. Only flags the user set override lower-precedence sources.
func loadConfig(cmd *cobra.Command, extra map[string]interface{}) (*config.Config, error) {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("headless") {
		flags["headless"] = headless
	}
	if changed("readiness") {
		flags["readiness"] = readiness
	}
	if changed("max-cycles") {
		flags["max-cycles"] = maxCycles
	}
	if changed("log-level") {
		flags["log-level"] = logLevel
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithFields(map[string]interface{}{
		"version": version,
		"command": cmd.Name(),
	}).Debug("serpgrab starting")

	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
