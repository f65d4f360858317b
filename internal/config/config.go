// Package config loads the host and client settings: pairing code, shared
// secret, ports and button/axis mapping profiles.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/padlink/padlink/internal/wire"
)

const (
	// ConfigDirName is the name of the config directory
	ConfigDirName = ".padlink"
	// SettingsFileName is the default settings file
	SettingsFileName = "settings.json"
	// DeviceNameFileName persists the client's device name
	DeviceNameFileName = "device_name"
	// DevicesFileName is the host's paired-device registry
	DevicesFileName = "devices.db"
)

// MappingProfile remaps incoming button names and inverts axes before the
// snapshot reaches the virtual controller
type MappingProfile struct {
	Name       string            `json:"name" yaml:"name"`
	Buttons    map[string]string `json:"buttons" yaml:"buttons"`
	AxisInvert map[string]bool   `json:"axisInvert" yaml:"axisInvert"`
}

// Settings holds everything the protocol core and the host need
type Settings struct {
	// PairCode gates discovery and pairing; compared case-insensitively
	PairCode string `json:"pairCode" yaml:"pairCode"`
	// SharedSecret is the static fallback key; empty disables it
	SharedSecret string `json:"sharedSecret" yaml:"sharedSecret"`
	// StreamPort carries pairing exchanges and input envelopes
	StreamPort int `json:"streamPort" yaml:"streamPort"`
	// DiscoveryPort receives broadcast discovery requests
	DiscoveryPort int `json:"discoveryPort" yaml:"discoveryPort"`
	// IdleTimeoutSeconds is how long without frames before controller state is reset
	IdleTimeoutSeconds float64 `json:"idleTimeoutSeconds" yaml:"idleTimeoutSeconds"`
	// DefaultProfile names the mapping profile used by the host
	DefaultProfile string           `json:"defaultProfile" yaml:"defaultProfile"`
	Profiles       []MappingProfile `json:"profiles" yaml:"profiles"`
}

// Paths holds commonly used paths
type Paths struct {
	// ConfigDir is ~/.padlink
	ConfigDir string
	// SettingsFile is ~/.padlink/settings.json
	SettingsFile string
	// DeviceNameFile is ~/.padlink/device_name
	DeviceNameFile string
	// DevicesFile is ~/.padlink/devices.db
	DevicesFile string
}

// GetPaths returns the standard paths
func GetPaths() (*Paths, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ConfigDirName)
	return &Paths{
		ConfigDir:      configDir,
		SettingsFile:   filepath.Join(configDir, SettingsFileName),
		DeviceNameFile: filepath.Join(configDir, DeviceNameFileName),
		DevicesFile:    filepath.Join(configDir, DevicesFileName),
	}, nil
}

// EnsureConfigDir creates the config directory if needed
func (p *Paths) EnsureConfigDir() error {
	if err := os.MkdirAll(p.ConfigDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// DefaultProfile returns the built-in Xbox-style mapping
func DefaultProfile() MappingProfile {
	return MappingProfile{
		Name: "default",
		Buttons: map[string]string{
			"a":          "A",
			"b":          "B",
			"x":          "X",
			"y":          "Y",
			"lb":         "LeftShoulder",
			"rb":         "RightShoulder",
			"back":       "Back",
			"start":      "Start",
			"ls":         "LeftThumb",
			"rs":         "RightThumb",
			"dpad_up":    "Up",
			"dpad_down":  "Down",
			"dpad_left":  "Left",
			"dpad_right": "Right",
			"home":       "Guide",
		},
		AxisInvert: map[string]bool{
			"left_stick_y":  true,
			"right_stick_y": true,
		},
	}
}

// Default returns settings with default values
func Default() *Settings {
	return &Settings{
		PairCode:           "1234",
		SharedSecret:       "change-me",
		StreamPort:         wire.DefaultStreamPort,
		DiscoveryPort:      wire.DefaultDiscoveryPort,
		IdleTimeoutSeconds: 5,
		DefaultProfile:     "default",
		Profiles:           []MappingProfile{DefaultProfile()},
	}
}

// IdleTimeout returns the idle threshold as a duration
func (s *Settings) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds * float64(time.Second))
}

// Profile returns the named profile, falling back to the default profile
// and then the built-in one
func (s *Settings) Profile(name string) MappingProfile {
	if name == "" {
		name = s.DefaultProfile
	}
	for _, p := range s.Profiles {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	for _, p := range s.Profiles {
		if strings.EqualFold(p.Name, s.DefaultProfile) {
			return p
		}
	}
	return DefaultProfile()
}

// Validate checks ports and timeouts
func (s *Settings) Validate() error {
	if s.StreamPort <= 0 || s.StreamPort > 65535 {
		return fmt.Errorf("invalid stream port %d", s.StreamPort)
	}
	if s.DiscoveryPort <= 0 || s.DiscoveryPort > 65535 {
		return fmt.Errorf("invalid discovery port %d", s.DiscoveryPort)
	}
	if s.StreamPort == s.DiscoveryPort {
		return fmt.Errorf("stream and discovery ports must differ (both %d)", s.StreamPort)
	}
	if s.IdleTimeoutSeconds <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %v", s.IdleTimeoutSeconds)
	}
	return nil
}

// LoadOrCreate reads settings from path, writing defaults there first if the
// file does not exist. Fields missing from the file keep their defaults.
func LoadOrCreate(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		settings := Default()
		if err := settings.Save(path); err != nil {
			return nil, err
		}
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings, err := Parse(data, isYAML(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	return settings, nil
}

// Parse decodes settings over the defaults. JSON input may contain comments
// and trailing commas.
func Parse(data []byte, asYAML bool) (*Settings, error) {
	settings := Default()
	if asYAML {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, err
		}
		return settings, nil
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes settings to path in the format implied by its extension
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	// The file holds the shared secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
