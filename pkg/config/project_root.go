package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveProjectRoot returns the absolute workspace root vtcode should
// operate in. The current working directory is used unless the sandbox
// config names an explicit writable root as the first entry.
func ResolveProjectRoot(cfg *Config) string {
	if cfg != nil && len(cfg.Sandbox.WritableRoots) > 0 {
		root := expandHomeDir(cfg.Sandbox.WritableRoots[0])
		if root != "" {
			if abs, err := filepath.Abs(root); err == nil {
				return abs
			}
			return root
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

func expandHomeDir(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
