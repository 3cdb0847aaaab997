package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"serpgrab/pkg/config"
	"serpgrab/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage serpgrab configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (SERPGRAB_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default value",
	Long: `Write a configuration file containing every option at its default value.

The file is created in the current directory as 'serpgrab.yaml' unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and report invalid values.

This command checks:
  - YAML syntax
  - Required selectors and URLs
  - Timing values
  - Output and log paths`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd, validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "serpgrab.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "1. Edit the search selectors and labels for your search engine and locale")
	fmt.Fprintln(cmd.OutOrStdout(), "2. Run 'serpgrab config validate' to check the configuration")
	fmt.Fprintln(cmd.OutOrStdout(), "3. Start collecting with 'serpgrab links <query>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprint(cmd.OutOrStdout(), string(data))

	fmt.Fprintln(cmd.OutOrStdout(), "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(cmd.OutOrStdout(), "1. Command line flags")
	fmt.Fprintln(cmd.OutOrStdout(), "2. Environment variables (SERPGRAB_*)")
	if configFile != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "3. Configuration file: (searched in default locations)")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var problems []string
	if err := os.MkdirAll(cfg.Download.OutputDirectory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			problems = append(problems, fmt.Sprintf("Cannot open log file: %v", err))
		} else {
			f.Close()
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}

	if !cfg.Browser.Headless {
		ui.PrintWarning("Browser runs with a visible window")
	}
	if cfg.Download.RequestsPerMinute == 0 {
		ui.PrintWarning("Remote downloads are not rate limited")
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(cmd.OutOrStdout(), "\nConfiguration summary:")
	fmt.Fprintf(cmd.OutOrStdout(), "  Search URL: %s\n", cfg.Search.BaseURL)
	fmt.Fprintf(cmd.OutOrStdout(), "  Readiness polling: %t\n", cfg.Timing.Readiness)
	fmt.Fprintf(cmd.OutOrStdout(), "  Max cycles: %d\n", cfg.Traversal.MaxCycles)
	fmt.Fprintf(cmd.OutOrStdout(), "  Output directory: %s\n", cfg.Download.OutputDirectory)
	fmt.Fprintf(cmd.OutOrStdout(), "  Relay: %s (ws %q)\n", cfg.Relay.Addr, cfg.Relay.WSAddr)
	fmt.Fprintf(cmd.OutOrStdout(), "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
