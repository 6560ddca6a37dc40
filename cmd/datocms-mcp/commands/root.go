package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/philippherzig/datocms-mcp/internal/config"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/mcp"
)

var (
	version    = "dev"
	configFile string
	profile    string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "datocms-mcp",
	Short: "DatoCMS MCP Server",
	Long: `A Model Context Protocol (MCP) server for the DatoCMS Content Management API.

It lets AI agents read and write records, uploads and schema of a DatoCMS
project through stored credential profiles, without handing them the API token.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// stdout belongs to the MCP protocol
	rootCmd.SetOut(os.Stderr)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is <user config dir>/datocms-mcp/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "profile to use (overrides config default)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
}

// SetVersion sets the version for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
	mcp.Version = v
}

// verboseLog prints a message only if verbose mode is enabled
func verboseLog(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return filepath.Join(config.GetConfigDir(), "config.yaml")
}

// configDir holds the config file, the profiles database and the audit log
func configDir() string {
	return filepath.Dir(configPath())
}

// resolveProfile picks the --profile flag, then the configured default
func resolveProfile(cfg *config.Config) (string, error) {
	if profile != "" {
		return profile, nil
	}
	if cfg.Profiles.Default == "" {
		return "", fmt.Errorf("no profile specified and no default profile configured")
	}
	return cfg.Profiles.Default, nil
}

// clientOptions turns the shared API settings into client options
func clientOptions(cfg *config.Config) []dato.Option {
	var opts []dato.Option
	if cfg.DatoCMS.RequestTimeout > 0 {
		opts = append(opts, dato.WithTimeout(cfg.DatoCMS.RequestTimeout))
	}
	opts = append(opts, dato.WithMaxRetries(cfg.DatoCMS.MaxRetries))
	if cfg.DatoCMS.RequestsPerSecond > 0 {
		opts = append(opts, dato.WithRateLimit(cfg.DatoCMS.RequestsPerSecond))
	}
	return opts
}
