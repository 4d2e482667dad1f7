package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/moolen/kubetrace/internal/config"
	"github.com/moolen/kubetrace/internal/logging"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	logLevelFlags []string // Supports multiple --log-level flags
	configPath    string
)

var rootCmd = &cobra.Command{
	Use:   "kubetrace",
	Short: "kubetrace - Kubernetes trace analysis",
	Long: `kubetrace analyzes Kubernetes user-space traces together with kernel traces.
It tracks object states, measures pod startup latency and attributes CPU time
to the cgroups and pods of a capture.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	// Supports per-package log levels: --log-level debug --log-level cgroups=debug
	rootCmd.PersistentFlags().StringSliceVar(&logLevelFlags, "log-level",
		nil,
		"Log level for packages. Use 'default=level' for default, or 'package.name=level' for per-package.\n"+
			"Examples: --log-level debug (all), --log-level cgroups=debug --log-level stateprovider=warn")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(startupCmd)
	rootCmd.AddCommand(cgroupsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(debugCmd)
}

// HandleError prints error and exits
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

// loadConfig reads the --config file, or the defaults when none is given,
// and initializes logging from it and the --log-level flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := setupLog(cfg, logLevelFlags); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLog initializes the logging system with parsed log level flags
// Priority: CLI flags > Environment variables > config file
func setupLog(cfg *config.Config, flags []string) error {
	defaultLevel, packageLevels, err := parseLogLevelFlags(cfg, flags)
	if err != nil {
		return err
	}
	return logging.Initialize(defaultLevel, packageLevels)
}

// parseLogLevelFlags merges the config file levels, environment variables and
// CLI flags, later sources overriding earlier ones.
//
// CLI format: ["debug"], ["default=info", "cgroups=debug"], or ["info"]
// Env vars: LOG_LEVEL_STATEPROVIDER=debug (package name uppercased, dots to underscores)
//
// Returns: (defaultLevel, packageLevels map, error)
func parseLogLevelFlags(cfg *config.Config, flags []string) (string, map[string]string, error) {
	result := make(map[string]string)

	// Step 1: config file (lowest priority)
	if cfg != nil {
		if cfg.LogLevel != "" {
			result["default"] = cfg.LogLevel
		}
		for pkg, level := range cfg.PackageLogLevels {
			result[pkg] = level
		}
	}

	// Step 2: LOG_LEVEL_* environment variables
	for _, envPair := range os.Environ() {
		if strings.HasPrefix(envPair, "LOG_LEVEL_") {
			parts := strings.SplitN(envPair, "=", 2)
			if len(parts) != 2 {
				continue
			}
			result[convertEnvKeyToPackageName(parts[0])] = parts[1]
		}
	}

	// Step 3: CLI flags
	for _, flag := range flags {
		if !strings.Contains(flag, "=") {
			result["default"] = flag
		} else {
			parts := strings.SplitN(flag, "=", 2)
			pkg, level := parts[0], parts[1]
			result[pkg] = level
		}
	}

	defaultLevel := "info"
	if level, exists := result["default"]; exists {
		defaultLevel = level
		delete(result, "default")
	}

	if err := validateLogLevel(defaultLevel); err != nil {
		return "", nil, err
	}
	for pkg, level := range result {
		if err := validateLogLevel(level); err != nil {
			return "", nil, fmt.Errorf("invalid log level for package %q: %v", pkg, err)
		}
	}

	return defaultLevel, result, nil
}

// convertEnvKeyToPackageName converts LOG_LEVEL_CGROUPS_BUILDER -> cgroups.builder
func convertEnvKeyToPackageName(envKey string) string {
	name := strings.TrimPrefix(envKey, "LOG_LEVEL_")
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}

// validateLogLevel checks if a level string is valid
func validateLogLevel(level string) error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLevels[strings.ToLower(level)] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error, fatal)", level)
	}
	return nil
}
