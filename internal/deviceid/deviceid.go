// Package deviceid provides the persistent device name a client reports
// when pairing and streaming
package deviceid

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/padlink/padlink/internal/config"
)

// GetOrCreate returns the device name stored in ~/.padlink/device_name,
// creating one if it doesn't exist
func GetOrCreate() (string, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return "", err
	}
	return GetOrCreateAt(paths.DeviceNameFile)
}

// GetOrCreateAt is GetOrCreate with an explicit file path
func GetOrCreateAt(path string) (string, error) {
	// Try to read existing name
	data, err := os.ReadFile(path)
	if err == nil {
		name := strings.TrimSpace(string(data))
		if name != "" {
			return name, nil
		}
	}

	name := newName()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(name), 0600); err != nil {
		return "", err
	}
	return name, nil
}

// newName combines the hostname with a short random suffix so two clients
// on the same machine stay distinguishable
func newName() string {
	suffix := uuid.New().String()[:8]
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "padlink-" + suffix
	}
	return host + "-" + suffix
}
