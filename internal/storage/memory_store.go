package storage

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// Ensure MemoryProfileStore implements ProfileStoreInterface
var _ ProfileStoreInterface = (*MemoryProfileStore)(nil)

// MemoryProfileStore keeps profiles in memory. It skips validation and is
// used by tests and by the environment-only Docker mode.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*types.Profile
}

// NewMemoryProfileStore creates a new in-memory profile store
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{
		profiles: make(map[string]*types.Profile),
	}
}

// AddProfile stores profile as-is, replacing any profile of the same name
func (m *MemoryProfileStore) AddProfile(profile *types.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.Name] = copyProfile(profile)
}

// GetProfile retrieves a copy of a profile
func (m *MemoryProfileStore) GetProfile(name string) (*types.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, exists := m.profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	return copyProfile(profile), nil
}

// ListProfiles returns all profile names in sorted order
func (m *MemoryProfileStore) ListProfiles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.profiles))
}

// CreateProfile creates a new profile with the given configuration
func (m *MemoryProfileStore) CreateProfile(name string, config map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[name]; exists {
		return fmt.Errorf("profile '%s' already exists", name)
	}
	now := time.Now()
	m.profiles[name] = &types.Profile{
		Name:      name,
		Config:    maps.Clone(config),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// UpdateProfile updates an existing profile
func (m *MemoryProfileStore) UpdateProfile(name string, config map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, exists := m.profiles[name]
	if !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}
	profile.Config = maps.Clone(config)
	profile.UpdatedAt = time.Now()
	return nil
}

// ProfileExists checks if a profile exists
func (m *MemoryProfileStore) ProfileExists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.profiles[name]
	return exists
}

// DeleteProfile removes a profile
func (m *MemoryProfileStore) DeleteProfile(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.profiles[name]; !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}
	delete(m.profiles, name)
	return nil
}
