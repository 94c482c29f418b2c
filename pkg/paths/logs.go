package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvLogDir = "VTCODE_LOG_DIR"

// defaultDotDir mirrors config.Config.Session.DotDir's own default, so a
// build with no env override and no customized dot_dir still lands logs
// next to the tool policy file and the session database.
const defaultDotDir = ".vtcode"

// LogsBaseDir returns the log root: VTCODE_LOG_DIR if set, otherwise
// dotDir/logs relative to the workspace (falling back to defaultDotDir
// when dotDir is blank, e.g. a caller that hasn't loaded config yet).
func LogsBaseDir(dotDir string) string {
	if dir := strings.TrimSpace(os.Getenv(EnvLogDir)); dir != "" {
		return filepath.Clean(expandHomePath(dir))
	}
	if strings.TrimSpace(dotDir) == "" {
		dotDir = defaultDotDir
	}
	return filepath.Join(dotDir, "logs")
}

func expandHomePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}

func LogsBaseDirForWorkdir(workdir, dotDir string) string {
	base := LogsBaseDir(dotDir)
	if filepath.IsAbs(base) || strings.TrimSpace(workdir) == "" {
		return base
	}
	return filepath.Join(workdir, base)
}

func LogsDir(dotDir, identifier string) string {
	base := LogsBaseDir(dotDir)
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return base
	}
	return filepath.Join(base, identifier)
}
