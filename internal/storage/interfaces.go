package storage

import "github.com/philippherzig/datocms-mcp/pkg/types"

// ProfileStoreInterface is what the MCP server and the CLI need from a profile store
type ProfileStoreInterface interface {
	GetProfile(name string) (*types.Profile, error)
	CreateProfile(name string, config map[string]string) error
	UpdateProfile(name string, config map[string]string) error
	DeleteProfile(name string) error
	ListProfiles() []string
	ProfileExists(name string) bool
}
