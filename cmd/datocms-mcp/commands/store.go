package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/philippherzig/datocms-mcp/internal/config"
	"github.com/philippherzig/datocms-mcp/internal/storage"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// MasterPasswordEnvVar unlocks sealed profiles without a prompt
const MasterPasswordEnvVar = config.EnvPrefix + "_MASTER_PASSWORD" // #nosec G101 - a variable name

// loadConfig reads the config file; create writes the defaults when it is missing
func loadConfig(create bool) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if create {
		cfg, err = config.LoadOrCreate(configPath())
	} else {
		cfg, err = config.Load(configPath())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the profiles database, asking for the master password
// when the config says profiles are sealed
func openStore(cfg *config.Config) (*storage.ProfileStore, error) {
	if cfg.Security.ProtectionPasswordHash == "" {
		return storage.NewProfileStore(configDir()), nil
	}

	password, err := masterPassword()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewProfileStoreWithPassword(configDir(), password)
	if err != nil {
		return nil, fmt.Errorf("failed to unlock profile store: %w", err)
	}
	return store, nil
}

// masterPassword tries the environment, then a Docker secret, then the terminal
func masterPassword() (string, error) {
	if password := os.Getenv(MasterPasswordEnvVar); password != "" {
		return password, nil
	}
	if config.IsRunningInDocker() {
		if password, err := config.LoadMasterPasswordFromSecret(); err == nil {
			verboseLog("Loaded master password from Docker secret")
			return password, nil
		}
	}
	password, err := readPassword("Enter master password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// readPassword reads a line from stdin, without echo on a terminal
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd()) // #nosec G115 - file descriptors fit in int
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// withDefaults fills environment and base URL from the config when the profile has none
func withDefaults(p *types.Profile, cfg *config.Config) *types.Profile {
	if p == nil || cfg == nil {
		return p
	}
	if p.Config == nil {
		p.Config = map[string]string{}
	}
	if p.Environment() == "" && cfg.DatoCMS.Environment != "" {
		p.Config[types.ConfigEnvironment] = cfg.DatoCMS.Environment
	}
	if p.BaseURL() == "" && cfg.DatoCMS.BaseURL != "" {
		p.Config[types.ConfigBaseURL] = cfg.DatoCMS.BaseURL
	}
	return p
}

func maskSensitive(value string) string {
	if len(value) <= 8 {
		return "********"
	}
	return value[:4] + "..." + value[len(value)-4:]
}
