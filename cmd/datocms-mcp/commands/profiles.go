package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/philippherzig/datocms-mcp/internal/ui"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

var profilesDeleteForce bool

// profilesCmd represents the profiles command
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage DatoCMS profiles",
	Long: `List, inspect, delete and pick the default of stored DatoCMS profiles.

A profile holds an API token and optionally a sandbox environment and an
API base URL.`,
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	RunE:  runProfilesList,
}

var profilesDeleteCmd = &cobra.Command{
	Use:   "delete [profile]",
	Short: "Delete a profile",
	Long:  `Delete a profile. This action cannot be undone.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesDelete,
}

var profilesSetDefaultCmd = &cobra.Command{
	Use:   "set-default [profile]",
	Short: "Set default profile",
	Long:  `Set the default profile to use when no --profile flag is specified.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesSetDefault,
}

var profilesShowCmd = &cobra.Command{
	Use:   "show [profile]",
	Short: "Show profile details",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfilesShow,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesDeleteCmd)
	profilesCmd.AddCommand(profilesSetDefaultCmd)
	profilesCmd.AddCommand(profilesShowCmd)

	profilesDeleteCmd.Flags().BoolVar(&profilesDeleteForce, "force", false, "delete without asking")
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	metadata := store.GetProfileMetadata()
	if len(metadata) == 0 {
		fmt.Println("No profiles configured.")
		fmt.Println("\nTo create a profile, run:")
		fmt.Println("  datocms-mcp init --profile <name> --token <token>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tENVIRONMENT\tDEFAULT\tUPDATED")
	for _, name := range store.ListProfiles() {
		meta := metadata[name]
		env := meta.Environment
		if env == "" {
			env = "(primary)"
		}
		isDefault := ""
		if name == cfg.Profiles.Default {
			isDefault = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, env, isDefault, meta.UpdatedAt.Format(time.DateOnly))
	}
	return w.Flush()
}

func runProfilesDelete(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if !store.ProfileExists(profileName) {
		return fmt.Errorf("profile '%s' not found", profileName)
	}

	confirmer := ui.NewConfirmer(types.Confirmation{
		AutoApprove: profilesDeleteForce,
		Timeout:     cfg.Security.ConfirmationTimeout,
	})
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result := confirmer.ConfirmDestructive(ctx, "Deleting profile", profileName)
	if result.Error != nil {
		return result.Error
	}
	if !result.Approved {
		confirmer.DisplayInfo("Deletion cancelled.")
		return nil
	}

	if err := store.DeleteProfile(profileName); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	if cfg.Profiles.Default == profileName {
		cfg.Profiles.Default = ""
		if err := cfg.Save(configPath()); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
		confirmer.DisplayWarning("Default profile cleared")
	}

	confirmer.DisplaySuccess(fmt.Sprintf("Profile '%s' deleted", profileName))
	return nil
}

func runProfilesSetDefault(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if !store.ProfileExists(profileName) {
		return fmt.Errorf("profile '%s' does not exist", profileName)
	}

	cfg.Profiles.Default = profileName
	if err := cfg.Save(configPath()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✓ Default profile set to '%s'\n", profileName)
	return nil
}

func runProfilesShow(cmd *cobra.Command, args []string) error {
	profileName := args[0]

	cfg, err := loadConfig(false)
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

	fmt.Printf("Profile: %s\n", p.Name)
	fmt.Printf("Default: %v\n", p.Name == cfg.Profiles.Default)
	if !p.CreatedAt.IsZero() {
		fmt.Printf("Created: %s\n", p.CreatedAt.Format(time.RFC3339))
	}
	if !p.UpdatedAt.IsZero() {
		fmt.Printf("Updated: %s\n", p.UpdatedAt.Format(time.RFC3339))
	}

	fmt.Println("\nDatoCMS Configuration:")
	fmt.Printf("  API Token: %s\n", maskSensitive(p.APIToken()))
	if env := p.Environment(); env != "" {
		fmt.Printf("  Environment: %s\n", env)
	} else {
		fmt.Println("  Environment: (primary)")
	}
	if base := p.BaseURL(); base != "" {
		fmt.Printf("  Base URL: %s\n", base)
	}
	fmt.Printf("  Encrypted: %v\n", store.IsSealed())
	return nil
}
