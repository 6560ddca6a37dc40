package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/philippherzig/datocms-mcp/internal/crypto"
	"github.com/philippherzig/datocms-mcp/internal/validation"
	"github.com/philippherzig/datocms-mcp/pkg/types"
)

// Ensure ProfileStore implements ProfileStoreInterface
var _ ProfileStoreInterface = (*ProfileStore)(nil)

const (
	// ProfilesFileName is the filename for the profiles database
	ProfilesFileName = "profiles.json"

	databaseVersion = 2
)

// ErrWrongMasterPassword is returned when the profiles file was sealed with another password
var ErrWrongMasterPassword = errors.New("master password does not match the profiles file")

// ProfileStore keeps credential profiles in a JSON file, sealed with the
// master password when one is set
type ProfileStore struct {
	mu        sync.RWMutex
	configDir string
	box       *crypto.Box
	validator *validation.Validator
	profiles  map[string]*types.Profile
	// set when the file on disk was written with a master password
	verifier string
}

// StoredProfile is a profile as written to disk
type StoredProfile struct {
	Name           string    `json:"name"`
	Data           string    `json:"data"`
	Sealed         bool      `json:"sealed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ConfigChecksum string    `json:"config_checksum"`
}

// ProfilesDatabase is the on-disk storage format
type ProfilesDatabase struct {
	Version       int                       `json:"version"`
	PasswordCheck string                    `json:"password_check,omitempty"`
	Profiles      map[string]*StoredProfile `json:"profiles"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}

// NewProfileStore opens a store without a master password. Profiles are
// written in plain text; an unreadable file leaves the store empty.
func NewProfileStore(configDir string) *ProfileStore {
	store := &ProfileStore{
		configDir: configDir,
		validator: validation.NewValidator(),
		profiles:  make(map[string]*types.Profile),
	}
	if err := store.loadProfiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load profiles: %v\n", err)
	}
	return store
}

// NewProfileStoreWithPassword opens a store sealed with password
func NewProfileStoreWithPassword(configDir string, password string) (*ProfileStore, error) {
	box, err := crypto.NewBox(password)
	if err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	store := &ProfileStore{
		configDir: configDir,
		box:       box,
		validator: validation.NewValidator(),
		profiles:  make(map[string]*types.Profile),
	}
	if err := store.loadProfiles(); err != nil {
		box.Close()
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return store, nil
}

// CreateProfile creates a new profile with the given configuration
func (ps *ProfileStore) CreateProfile(name string, config map[string]string) error {
	if err := ps.validator.ValidateProfileName(name); err != nil {
		return err
	}
	if err := ps.validateConfig(config); err != nil {
		return fmt.Errorf("invalid DatoCMS configuration: %w", err)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.profiles[name]; exists {
		return fmt.Errorf("profile '%s' already exists", name)
	}

	now := time.Now()
	ps.profiles[name] = &types.Profile{
		Name:      name,
		Config:    maps.Clone(config),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return ps.saveProfiles()
}

// GetProfile retrieves a copy of a profile by name
func (ps *ProfileStore) GetProfile(name string) (*types.Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("profile name cannot be empty")
	}

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	profile, exists := ps.profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	return copyProfile(profile), nil
}

// ListProfiles returns the profile names in sorted order
func (ps *ProfileStore) ListProfiles() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return slices.Sorted(maps.Keys(ps.profiles))
}

// UpdateProfile replaces the configuration of an existing profile
func (ps *ProfileStore) UpdateProfile(name string, config map[string]string) error {
	if err := ps.validateConfig(config); err != nil {
		return fmt.Errorf("invalid DatoCMS configuration: %w", err)
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	profile, exists := ps.profiles[name]
	if !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}
	profile.Config = maps.Clone(config)
	profile.UpdatedAt = time.Now()
	return ps.saveProfiles()
}

// DeleteProfile deletes a profile
func (ps *ProfileStore) DeleteProfile(name string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.profiles[name]; !exists {
		return fmt.Errorf("profile '%s' not found", name)
	}
	delete(ps.profiles, name)
	return ps.saveProfiles()
}

// ProfileExists checks if a profile exists
func (ps *ProfileStore) ProfileExists(name string) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	_, exists := ps.profiles[name]
	return exists
}

// GetProfileMetadata returns non-secret metadata about all profiles
func (ps *ProfileStore) GetProfileMetadata() map[string]types.ProfileMetadata {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	metadata := make(map[string]types.ProfileMetadata, len(ps.profiles))
	for name, profile := range ps.profiles {
		metadata[name] = types.ProfileMetadata{
			Name:        profile.Name,
			Environment: profile.Environment(),
			CreatedAt:   profile.CreatedAt,
			UpdatedAt:   profile.UpdatedAt,
		}
	}
	return metadata
}

// IsSealed reports whether profiles are written with a master password
func (ps *ProfileStore) IsSealed() bool {
	return ps.box != nil
}

// PasswordCheck returns the verifier stored with sealed profiles. It is
// empty until the first profile is saved.
func (ps *ProfileStore) PasswordCheck() string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.verifier
}

// saveProfiles writes all profiles to disk. Callers hold ps.mu.
func (ps *ProfileStore) saveProfiles() error {
	db := &ProfilesDatabase{
		Version:   databaseVersion,
		Profiles:  make(map[string]*StoredProfile, len(ps.profiles)),
		UpdatedAt: time.Now(),
	}

	if ps.box != nil {
		if ps.verifier == "" {
			v, err := ps.box.Verifier()
			if err != nil {
				return fmt.Errorf("failed to create password check: %w", err)
			}
			ps.verifier = v
		}
		db.PasswordCheck = ps.verifier
	}

	for name, profile := range ps.profiles {
		raw, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("failed to serialize profile '%s': %w", name, err)
		}

		stored := &StoredProfile{
			Name:           name,
			Data:           string(raw),
			CreatedAt:      profile.CreatedAt,
			UpdatedAt:      profile.UpdatedAt,
			ConfigChecksum: checksum(profile.Config),
		}
		if ps.box != nil {
			sealed, err := ps.box.Seal(raw)
			if err != nil {
				return fmt.Errorf("failed to seal profile '%s': %w", name, err)
			}
			stored.Data = sealed
			stored.Sealed = true
		}
		db.Profiles[name] = stored
	}

	data, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize profiles database: %w", err)
	}

	if err := os.MkdirAll(ps.configDir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	profilesPath := filepath.Join(ps.configDir, ProfilesFileName)
	tempPath := profilesPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profiles to temp file: %w", err)
	}
	if err := os.Rename(tempPath, profilesPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to atomically update profiles file: %w", err)
	}
	return nil
}

// loadProfiles reads the profiles file. Entries that cannot be opened or
// fail their checksum are skipped with a warning.
func (ps *ProfileStore) loadProfiles() error {
	profilesPath := filepath.Join(ps.configDir, ProfilesFileName)
	data, err := os.ReadFile(profilesPath) // #nosec G304 - path built from the config directory
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read profiles file: %w", err)
	}

	var db ProfilesDatabase
	if err := json.Unmarshal(data, &db); err != nil {
		return fmt.Errorf("failed to parse profiles database: %w", err)
	}

	if db.PasswordCheck != "" {
		if ps.box == nil {
			return fmt.Errorf("profiles file is sealed; a master password is required")
		}
		if !ps.box.Verify(db.PasswordCheck) {
			return ErrWrongMasterPassword
		}
		ps.verifier = db.PasswordCheck
	}

	loaded := make(map[string]*types.Profile, len(db.Profiles))
	for name, stored := range db.Profiles {
		raw := []byte(stored.Data)
		if stored.Sealed {
			if ps.box == nil {
				fmt.Fprintf(os.Stderr, "Warning: profile '%s' is sealed, skipping\n", name)
				continue
			}
			raw, err = ps.box.Open(stored.Data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to open profile '%s', skipping: %v\n", name, err)
				continue
			}
		}

		var profile types.Profile
		if err := json.Unmarshal(raw, &profile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to deserialize profile '%s', skipping: %v\n", name, err)
			continue
		}
		if stored.ConfigChecksum != checksum(profile.Config) {
			fmt.Fprintf(os.Stderr, "Warning: profile '%s' has invalid checksum, skipping\n", name)
			continue
		}
		loaded[name] = &profile
	}
	ps.profiles = loaded
	return nil
}

func (ps *ProfileStore) validateConfig(config map[string]string) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	token, ok := config[types.ConfigAPIToken]
	if !ok {
		return fmt.Errorf("required field '%s' is missing", types.ConfigAPIToken)
	}
	if err := ps.validator.ValidateToken(token); err != nil {
		return err
	}
	if err := ps.validator.ValidateEnvironment(config[types.ConfigEnvironment]); err != nil {
		return err
	}
	if base := config[types.ConfigBaseURL]; base != "" {
		if err := ps.validator.ValidateURL(base); err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
	}
	return nil
}

// checksum detects hand edits of the config in the profiles file
func checksum(config map[string]string) string {
	data, _ := json.Marshal(config)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func copyProfile(profile *types.Profile) *types.Profile {
	return &types.Profile{
		Name:      profile.Name,
		Config:    maps.Clone(profile.Config),
		CreatedAt: profile.CreatedAt,
		UpdatedAt: profile.UpdatedAt,
	}
}

// Close wipes profile secrets and the master password from memory
func (ps *ProfileStore) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for name, profile := range ps.profiles {
		clear(profile.Config)
		delete(ps.profiles, name)
	}
	if ps.box != nil {
		ps.box.Close()
		ps.box = nil
	}
	return nil
}
