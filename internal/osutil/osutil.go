// Package osutil resolves the application directory behind a swappable
// provider so tests can redirect or fail it.
package osutil

import (
	"os"
	"path/filepath"
)

// AppName names the per-user application directory.
const AppName = "wogger"

// PathProvider abstracts the OS calls used to locate and create the app directory.
type PathProvider interface {
	UserConfigDir() (string, error)
	MkdirAll(path string, perm os.FileMode) error
}

// DefaultPathProvider uses real OS functions.
type DefaultPathProvider struct{}

// UserConfigDir returns the default root directory for user-specific configuration data.
func (DefaultPathProvider) UserConfigDir() (string, error) {
	return os.UserConfigDir()
}

// MkdirAll creates a directory named path, along with any necessary parents.
func (DefaultPathProvider) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Provider is the package-level path provider instance.
// In production, this is DefaultPathProvider. Tests can replace it.
var Provider PathProvider = DefaultPathProvider{}

// SetProvider sets a custom provider (for testing).
func SetProvider(p PathProvider) {
	Provider = p
}

// ResetProvider resets to the default provider.
func ResetProvider() {
	Provider = DefaultPathProvider{}
}

// AppDir returns <user config dir>/wogger, creating it if needed.
func AppDir() (string, error) {
	configDir, err := Provider.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(configDir, AppName)
	if err := Provider.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// AppFile returns the path of name inside AppDir, or inside override when
// override is non-empty (the directory is created either way).
func AppFile(override, name string) (string, error) {
	if override == "" {
		dir, err := AppDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, name), nil
	}
	if err := Provider.MkdirAll(override, 0755); err != nil {
		return "", err
	}
	return filepath.Join(override, name), nil
}
