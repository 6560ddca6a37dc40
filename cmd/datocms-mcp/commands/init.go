package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/philippherzig/datocms-mcp/internal/config"
	"github.com/philippherzig/datocms-mcp/internal/dato"
	"github.com/philippherzig/datocms-mcp/internal/storage"
	"github.com/philippherzig/datocms-mcp/internal/ui"
	"github.com/philippherzig/datocms-mcp/internal/validation"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

var (
	initProfile          string
	initToken            string
	initEnvironment      string
	initBaseURL          string
	initNoMasterPassword bool
	initSkipTest         bool
	initOverwrite        bool
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new DatoCMS profile",
	Long: `Store a DatoCMS API token as a named profile.

The token needs access to the Content Management API. Profiles are sealed
with a master password unless --no-master-password is given.

Examples:
  # Initialize with an API token
  datocms-mcp init --profile production --token abc123

  # Target a sandbox environment
  datocms-mcp init --profile staging --token abc123 --environment staging

  # Read the token from the environment
  export DATOCMS_API_TOKEN=abc123
  datocms-mcp init --profile production`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.SetOut(os.Stderr)
	initCmd.SetErr(os.Stderr)

	initCmd.Flags().StringVar(&initProfile, "name", "", "profile name (defaults to --profile)")
	initCmd.Flags().StringVar(&initToken, "token", "", "Content Management API token")
	initCmd.Flags().StringVar(&initEnvironment, "environment", "", "sandbox environment (primary when empty)")
	initCmd.Flags().StringVar(&initBaseURL, "base-url", "", "API base URL override")
	initCmd.Flags().BoolVar(&initNoMasterPassword, "no-master-password", false, "store profiles without encryption (NOT RECOMMENDED)")
	initCmd.Flags().BoolVar(&initSkipTest, "skip-test", false, "do not test the token before saving")
	initCmd.Flags().BoolVar(&initOverwrite, "overwrite", false, "replace an existing profile without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	name := initProfile
	if name == "" {
		name = profile
	}
	if name == "" {
		return fmt.Errorf("a profile name is required: use --profile or --name")
	}

	if initToken == "" {
		initToken = strings.TrimSpace(os.Getenv(config.TokenEnvVar))
	}
	if initToken == "" {
		return fmt.Errorf("either --token or the %s environment variable must be provided", config.TokenEnvVar)
	}

	validator := validation.NewValidator()
	if err := validator.ValidateProfileName(name); err != nil {
		return fmt.Errorf("invalid profile name: %w", err)
	}
	if err := validator.ValidateToken(initToken); err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if err := validator.ValidateEnvironment(initEnvironment); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	if initBaseURL != "" {
		if err := validator.ValidateURL(initBaseURL); err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
	}

	if err := os.MkdirAll(configDir(), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	store, err := initStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	profileConfig := map[string]string{types.ConfigAPIToken: initToken}
	if initEnvironment != "" {
		profileConfig[types.ConfigEnvironment] = initEnvironment
	}
	if initBaseURL != "" {
		profileConfig[types.ConfigBaseURL] = initBaseURL
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	replace := store.ProfileExists(name)
	if replace {
		confirmer := ui.NewConfirmer(types.Confirmation{
			AutoApprove: initOverwrite,
			DefaultDeny: true,
			Timeout:     cfg.Security.ConfirmationTimeout,
		})
		details := make(map[string]any, len(profileConfig))
		for k, v := range profileConfig {
			details[k] = v
		}
		result := confirmer.ConfirmOperation(ctx, "Replace profile", name, details)
		if result.Error != nil {
			return result.Error
		}
		if !result.Approved {
			return fmt.Errorf("profile '%s' already exists", name)
		}
	}

	fmt.Fprintf(os.Stderr, "Initializing profile '%s'...\n", name)

	if !initSkipTest {
		fmt.Fprint(os.Stderr, "Testing connection to DatoCMS... ")
		site, err := testConnection(ctx, withDefaults(&types.Profile{Name: name, Config: profileConfig}, cfg), cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "✗")
			return fmt.Errorf("failed to connect: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ %s\n", site.Name)
	}

	save := store.CreateProfile
	if replace {
		save = store.UpdateProfile
	}
	if err := save(name, profileConfig); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	if store.IsSealed() && cfg.Security.ProtectionPasswordHash == "" {
		cfg.Security.ProtectionPasswordHash = store.PasswordCheck()
	}
	if cfg.Profiles.Default == "" || !store.ProfileExists(cfg.Profiles.Default) {
		cfg.Profiles.Default = name
		fmt.Fprintf(os.Stderr, "✓ Set '%s' as default profile\n", name)
	}
	if err := cfg.Save(configPath()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\nProfile '%s' initialized successfully!\n", name)
	fmt.Fprintln(os.Stderr, "\nTo start the MCP server, run:")
	fmt.Fprintf(os.Stderr, "  datocms-mcp serve --profile %s\n", name)
	return nil
}

// initStore opens the existing store or runs the first time setup
func initStore(cfg *config.Config) (*storage.ProfileStore, error) {
	if cfg.Security.ProtectionPasswordHash != "" {
		return openStore(cfg)
	}

	if initNoMasterPassword {
		fmt.Fprintln(os.Stderr, "WARNING: Creating profile WITHOUT a master password.")
		fmt.Fprintln(os.Stderr, "Your DatoCMS API token will be stored in plain text.")
		return storage.NewProfileStore(configDir()), nil
	}

	if password := os.Getenv(MasterPasswordEnvVar); password != "" {
		return storage.NewProfileStoreWithPassword(configDir(), password)
	}

	fmt.Fprintln(os.Stderr, "First time setup - please create a master password for profile encryption.")
	password, err := readPassword("Enter master password: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := readPassword("Confirm master password: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return nil, fmt.Errorf("passwords do not match")
	}

	store, err := storage.NewProfileStoreWithPassword(configDir(), password)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile store: %w", err)
	}
	return store, nil
}

// testConnection checks the token by reading the site settings
func testConnection(ctx context.Context, p *types.Profile, cfg *config.Config) (dato.Site, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := dato.NewClient(p, nil, clientOptions(cfg)...)
	if err != nil {
		return dato.Site{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return client.FindSite(ctx)
}
