package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names a config file that takes precedence over every
	// other location
	EnvConfigPath = "NETLAYERS_CONFIG"
	// ConfigFileName is looked up in the directory the editor runs from
	ConfigFileName = "netlayers.yaml"
	// ConfigDirName is the per-user and system directory holding config.yaml
	ConfigDirName = "netlayers"

	userConfigName = "config.yaml"
)

// SearchPaths lists the places a config file is looked for, most specific
// first: the env override, the working directory, the user config dir and
// finally the system dir. Locations whose base is unknown are left out.
func SearchPaths() []string {
	var paths []string
	if explicit := os.Getenv(EnvConfigPath); explicit != "" {
		paths = append(paths, explicit)
	}
	if abs, err := filepath.Abs(ConfigFileName); err == nil {
		paths = append(paths, abs)
	} else {
		paths = append(paths, ConfigFileName)
	}
	if dir := userConfigDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, ConfigDirName, userConfigName))
	}
	return append(paths, filepath.Join("/etc", ConfigDirName, userConfigName))
}

// FindConfigPath returns the first existing entry of SearchPaths, or ""
// when the editor should run on defaults
func FindConfigPath() string {
	for _, path := range SearchPaths() {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// DefaultConfigPath is where a generated config file is written: the user
// config dir when one is known, the working directory otherwise
func DefaultConfigPath() string {
	if dir := userConfigDir(); dir != "" {
		return filepath.Join(dir, ConfigDirName, userConfigName)
	}
	return ConfigFileName
}

// userConfigDir honours XDG_CONFIG_HOME and falls back to ~/.config
func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config")
	}
	return ""
}

// EnsureConfigDir creates the directory that will hold configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0o755)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
