// Package utils holds small filesystem helpers shared by the CLI layer
// that don't belong to any one tool's sandbox or search logic.
package utils

import (
	"os"
)

// FileExists checks if a file exists and is accessible. run() uses this to
// decide whether to load a workspace .env before resolving provider API
// keys; unified_file and unified_search own their own read/list paths
// against the sandbox policy and don't go through here.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
