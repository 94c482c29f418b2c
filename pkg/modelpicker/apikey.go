package modelpicker

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// envVarFor maps a provider name to the environment variable its API key is
// conventionally read from, mirroring pkg/config's ProviderEntry.EnvVar
// defaults.
func envVarFor(provider string) string {
	switch strings.ToLower(provider) {
	case "openrouter":
		return "OPENROUTER_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	default:
		return strings.ToUpper(provider) + "_API_KEY"
	}
}

// resolveAPIKey checks the target env var, then a workspace .env file, and
// only reports "not found" when neither holds a non-empty value — the
// picker prompts the user only in that case.
func resolveAPIKey(provider, workspaceDir string) (string, bool) {
	envVar := envVarFor(provider)
	if v := os.Getenv(envVar); strings.TrimSpace(v) != "" {
		return v, true
	}

	dotenvPath := filepath.Join(workspaceDir, ".env")
	vars, err := godotenv.Read(dotenvPath)
	if err != nil {
		return "", false
	}
	if v, ok := vars[envVar]; ok && strings.TrimSpace(v) != "" {
		return v, true
	}
	return "", false
}
