package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/philippherzig/datocms-mcp/internal/dato"
)

var testDetails bool

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test the DatoCMS connection of a profile",
	Long: `Test the connection to the DatoCMS Content Management API.

This command verifies that:
- The profile can be unlocked and read
- The API token is accepted
- The site settings and schema can be read

Examples:
  # Test the default profile
  datocms-mcp test

  # Test a specific profile and list its models
  datocms-mcp test --profile production --details`,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().BoolVar(&testDetails, "details", false, "list models and blocks of the site")
}

func runTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	profileName, err := resolveProfile(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := store.GetProfile(profileName)
	if err != nil {
		return fmt.Errorf("profile '%s' not found", profileName)
	}
	p = withDefaults(p, cfg)

	fmt.Fprintf(os.Stderr, "Testing profile '%s'...\n", profileName)
	verboseLog("Environment: %q, base URL: %q", p.Environment(), p.BaseURL())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	site, err := testConnection(ctx, p, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Connection failed")
		if dato.IsPermissionDenied(err) {
			return fmt.Errorf("the API token was rejected: %w", err)
		}
		return fmt.Errorf("connection test failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Connected to '%s' in %s\n", site.Name, time.Since(started).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  Locales: %s\n", strings.Join(site.Locales, ", "))
	if env := p.Environment(); env != "" {
		fmt.Fprintf(os.Stderr, "  Environment: %s\n", env)
	}

	if !testDetails {
		return nil
	}

	client, err := dato.NewClient(p, nil, clientOptions(cfg)...)
	if err != nil {
		return err
	}
	itemTypes, err := client.ListItemTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	fmt.Fprintf(os.Stderr, "\nModels and blocks (%d):\n", len(itemTypes))
	for _, it := range itemTypes {
		kind := "model"
		if it.ModularBlock {
			kind = "block"
		}
		fmt.Fprintf(os.Stderr, "  %-6s %-30s %s\n", kind, it.APIKey, it.ID)
	}
	return nil
}
