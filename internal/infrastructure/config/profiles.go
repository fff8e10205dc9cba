package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProfilesConfig holds the named user profiles (read/write).
type ProfilesConfig struct {
	Profiles map[string]ProfileEntry `yaml:"profiles,omitempty"`
}

// ProfileEntry holds configuration for a specific profile.
type ProfileEntry struct {
	UserID      string `yaml:"user_id,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// LoadProfiles loads the profiles file from the .bookspace directory.
func LoadProfiles(basePath string) (*ProfilesConfig, error) {
	data, err := os.ReadFile(ProfilesFilePath(basePath))
	if os.IsNotExist(err) {
		// Return empty config if file doesn't exist
		return &ProfilesConfig{
			Profiles: make(map[string]ProfileEntry),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}

	var cfg ProfilesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing profiles file: %w", err)
	}

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]ProfileEntry)
	}

	return &cfg, nil
}

// Save writes the profiles to the profiles file.
func (p *ProfilesConfig) Save(basePath string) error {
	if err := os.MkdirAll(ConfigDir(basePath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling profiles config: %w", err)
	}

	if err := os.WriteFile(ProfilesFilePath(basePath), data, 0600); err != nil {
		return fmt.Errorf("writing profiles file: %w", err)
	}

	return nil
}

// Add adds a profile to the configuration.
func (p *ProfilesConfig) Add(name string, entry ProfileEntry) {
	if p.Profiles == nil {
		p.Profiles = make(map[string]ProfileEntry)
	}
	p.Profiles[name] = entry
}

// Remove removes a profile from the configuration.
func (p *ProfilesConfig) Remove(name string) {
	if p.Profiles != nil {
		delete(p.Profiles, name)
	}
}

// Get returns the configuration for a specific profile.
func (p *ProfilesConfig) Get(name string) (*ProfileEntry, error) {
	if len(p.Profiles) == 0 {
		return nil, errors.New("no profiles configured")
	}

	entry, ok := p.Profiles[name]
	if !ok {
		names := p.Names()
		if len(names) > 5 {
			names = append(names[:5], "...")
		}
		return nil, fmt.Errorf("profile %q not found (available: %s)", name, strings.Join(names, ", "))
	}

	return &entry, nil
}

// UserID returns the remote user id of a profile. Unknown profiles and
// profiles without a user have none, which keeps them local only.
func (p *ProfilesConfig) UserID(name string) string {
	if p.Profiles == nil {
		return ""
	}
	return p.Profiles[name].UserID
}

// Names returns the profile names in sorted order.
func (p *ProfilesConfig) Names() []string {
	names := make([]string, 0, len(p.Profiles))
	for name := range p.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Exists checks if a profile exists in the configuration.
func (p *ProfilesConfig) Exists(name string) bool {
	if p.Profiles == nil {
		return false
	}
	_, ok := p.Profiles[name]
	return ok
}
