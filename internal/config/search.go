package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the config file grove looks for in the search path.
const FileName = "grove.yaml"

// EnvConfig names an environment variable holding an explicit config
// file path, checked before the search path.
const EnvConfig = "GROVE_CONFIG"

// Search locates grove.yaml. Order: the GROVE_CONFIG environment
// variable, the current directory, ./grove, ./etc/grove, ~/.config/grove,
// ~/etc/grove, /etc/grove.
func Search() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("config: %s=%s: %w", EnvConfig, p, err)
		}
		return p, nil
	}

	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("config: %s not found (searched current directory, ./grove, ./etc/grove, ~/.config/grove, ~/etc/grove, /etc/grove)", FileName)
}

func searchDirs() []string {
	dirs := []string{".", "grove", filepath.Join("etc", "grove")}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".config", "grove"),
			filepath.Join(home, "etc", "grove"),
		)
	}
	return append(dirs, "/etc/grove")
}
