package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/philippherzig/datocms-mcp/pkg/types"
)

const (
	// DockerSecretsPath is where Docker and Compose mount secrets
	DockerSecretsPath = "/run/secrets"
	// TokenSecretName holds the CMA API token
	TokenSecretName = "datocms_api_token" // #nosec G101 - a file name, not a credential
	// EnvironmentSecretName optionally holds the sandbox environment
	EnvironmentSecretName    = "datocms_environment"
	MasterPasswordSecretName = "master_password"

	// TokenEnvVar is read when no token secret is mounted
	TokenEnvVar       = "DATOCMS_API_TOKEN" // #nosec G101 - a variable name
	EnvironmentEnvVar = "DATOCMS_ENVIRONMENT"
	BaseURLEnvVar     = "DATOCMS_BASE_URL"

	// DirectProfileName names the profile built from secrets or the environment
	DirectProfileName = "docker"
)

// ErrNoDirectCredentials is returned when neither a secret nor an environment token is present
var ErrNoDirectCredentials = errors.New("no DatoCMS API token in Docker secrets or environment")

// secretsDir can be replaced in tests
var secretsDir = DockerSecretsPath

// LoadDirectProfile builds a profile from Docker secrets, falling back to
// environment variables. Secrets win over the environment.
func LoadDirectProfile() (*types.Profile, error) {
	token := readSecret(TokenSecretName)
	if token == "" {
		token = strings.TrimSpace(os.Getenv(TokenEnvVar))
	}
	if token == "" {
		return nil, ErrNoDirectCredentials
	}

	config := map[string]string{types.ConfigAPIToken: token}

	env := readSecret(EnvironmentSecretName)
	if env == "" {
		env = strings.TrimSpace(os.Getenv(EnvironmentEnvVar))
	}
	if env != "" {
		config[types.ConfigEnvironment] = env
	}
	if base := strings.TrimSpace(os.Getenv(BaseURLEnvVar)); base != "" {
		config[types.ConfigBaseURL] = base
	}

	return &types.Profile{Name: DirectProfileName, Config: config}, nil
}

// LoadMasterPasswordFromSecret loads the master password from a Docker secret
func LoadMasterPasswordFromSecret() (string, error) {
	if password := readSecret(MasterPasswordSecretName); password != "" {
		return password, nil
	}
	return "", fmt.Errorf("master password secret not found")
}

func readSecret(name string) string {
	data, err := os.ReadFile(filepath.Join(secretsDir, name)) // #nosec G304 - fixed secrets directory
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// IsRunningInDocker checks if the application is running inside a container
func IsRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if cgroup, err := os.ReadFile("/proc/1/cgroup"); err == nil { // #nosec G304 - well-known proc path
		if strings.Contains(string(cgroup), "docker") || strings.Contains(string(cgroup), "containerd") {
			return true
		}
	}
	_, err := os.Stat(secretsDir)
	return err == nil
}
