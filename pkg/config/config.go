// Package config loads and validates the vtcode configuration file
// (~/.vtcode/config.yaml by default): a single struct tree with yaml
// tags, package-level defaults, and a Load/Save pair backed by
// gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	vterrors "github.com/vtcode/vtcode/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	defaultOpenRouterModel = "moonshotai/kimi-k2-thinking"
	defaultOpenAIModel     = "openai/gpt-5.2-codex-xhigh"
	defaultAnthropicModel  = "anthropic/claude-sonnet-4-5"
	defaultGoogleModel     = "google/gemini-3-pro"

	// MinTokenLength is the minimum recommended length for any stored auth token.
	MinTokenLength = 32
)

// Default configuration values, exported for documentation and validation.
const (
	DefaultProvider          = "openrouter"
	DefaultTrustLevel        = "standard"
	DefaultApprovalRisk      = "medium"
	DefaultSessionBudget     = 10.00
	DefaultDailyBudget       = 20.00
	DefaultMonthlyBudget     = 200.00
	DefaultAutoStopBudget    = 50.00
	DefaultCompactThreshold  = 0.75
	DefaultContextWindow     = 128000
	DefaultYieldIntervalSecs = 2
	DefaultRateLimitPerSec   = 10
	DefaultRateLimitPerMin   = 200
)

var providerDefaultModels = map[string]string{
	"openrouter": defaultOpenRouterModel,
	"openai":     defaultOpenAIModel,
	"anthropic":  defaultAnthropicModel,
	"google":     defaultGoogleModel,
}

// Config is the top-level vtcode configuration tree.
type Config struct {
	Models        ModelConfig       `yaml:"models"`
	Providers     ProviderConfig    `yaml:"providers"`
	Sandbox       SandboxConfig     `yaml:"sandbox"`
	Safety        SafetyConfig      `yaml:"safety"`
	Tools         ToolsConfig       `yaml:"tools"`
	MCP           MCPConfig         `yaml:"mcp"`
	Context        ContextConfig        `yaml:"context"`
	Session        SessionConfig        `yaml:"session"`
	CostManagement CostManagementConfig `yaml:"cost_management"`
	CustomAPIKeys  map[string]string    `yaml:"custom_api_keys"`
}

// ModelConfig selects the default model and reasoning variant per provider.
type ModelConfig struct {
	DefaultProvider string `yaml:"default_provider"`
	DefaultModel    string `yaml:"default_model"`
	Reasoning       string `yaml:"reasoning"`
}

// ProviderConfig holds provider API key locations. Keys are read from the
// environment first (PROVIDER_API_KEY), falling back to these paths only for
// the model picker's discovery pass.
type ProviderConfig struct {
	OpenRouter ProviderEntry `yaml:"openrouter"`
	OpenAI     ProviderEntry `yaml:"openai"`
	Anthropic  ProviderEntry `yaml:"anthropic"`
	Google     ProviderEntry `yaml:"google"`
}

// ProviderEntry is one provider's configuration.
type ProviderEntry struct {
	EnvVar       string `yaml:"env_var"`
	DefaultModel string `yaml:"default_model"`
}

// SandboxConfig configures the default Sandbox Policy (component A).
type SandboxConfig struct {
	Mode            string   `yaml:"mode"` // read_only | workspace_write | danger_full_access | external
	WritableRoots   []string `yaml:"writable_roots"`
	NetworkAllow    []string `yaml:"network_allowlist"`
	SensitivePaths  []string `yaml:"sensitive_paths"`
	ExcludeTmpdir   bool     `yaml:"exclude_tmpdir"`
	ExcludeSlashTmp bool     `yaml:"exclude_slash_tmp"`
	MaxCPUSeconds   int      `yaml:"max_cpu_seconds"`
	MaxMemoryMB     int      `yaml:"max_memory_mb"`
}

// SafetyConfig configures the Safety Gateway (component E).
type SafetyConfig struct {
	TrustLevel            string          `yaml:"trust_level"` // restricted | standard | elevated | full
	ApprovalRiskThreshold string          `yaml:"approval_risk_threshold"`
	RateLimitPerSecond    int             `yaml:"rate_limit_per_second"`
	RateLimitPerMinute    int             `yaml:"rate_limit_per_minute"`
	PlanMode              bool            `yaml:"plan_mode"`
	ClonePolicy           ClonePolicyConfig `yaml:"clone_policy"`
}

// ClonePolicyConfig restricts which git remotes a "git clone"-shaped
// unified_exec command may target, per the gateway's clone-URL check.
type ClonePolicyConfig struct {
	AllowedSchemes      []string `yaml:"allowed_schemes"`
	AllowedHosts        []string `yaml:"allowed_hosts"`
	DeniedHosts         []string `yaml:"denied_hosts"`
	DenyPrivateNetworks bool     `yaml:"deny_private_networks"`
}

// ToolsConfig configures the Tool Policy Store and per-tool behavior.
type ToolsConfig struct {
	AutoAllow      []string          `yaml:"auto_allow"`
	CommandAllow   []string          `yaml:"command_allow"`
	CommandDeny    []string          `yaml:"command_deny"`
	Policies       map[string]string `yaml:"policies"` // alternate JSON-shape escape hatch, see §4.C
}

// MCPConfig configures the MCP Client (component J).
type MCPConfig struct {
	Servers   []MCPServerConfig `yaml:"servers"`
	SyncTools bool              `yaml:"sync_tools_to_files"`
}

// MCPServerConfig is one MCP provider's connection config.
type MCPServerConfig struct {
	Name      string   `yaml:"name"`
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	AllowGlob []string `yaml:"allow_glob"`
}

// ContextConfig configures the Token Budget Manager and Context Optimizer.
type ContextConfig struct {
	MaxTokens        int     `yaml:"max_tokens"`
	CompactThreshold float64 `yaml:"compact_threshold"`
}

// SessionConfig configures PTY and checkpoint behavior.
type SessionConfig struct {
	DotDir              string `yaml:"dot_dir"`
	PTYYieldIntervalSec int    `yaml:"pty_yield_interval_seconds"`
}

// CostManagementConfig configures the cost tracker's budget thresholds; a
// zero value for any field disables that budget's warnings, per the cost
// tracker's own zero-means-unlimited convention.
type CostManagementConfig struct {
	SessionBudget float64 `yaml:"session_budget"`
	DailyBudget   float64 `yaml:"daily_budget"`
	MonthlyBudget float64 `yaml:"monthly_budget"`
	AutoStopAt    float64 `yaml:"auto_stop_at"`
}

// Default returns a Config populated with the package defaults.
func Default() *Config {
	return &Config{
		Models: ModelConfig{
			DefaultProvider: DefaultProvider,
			DefaultModel:    providerDefaultModels[DefaultProvider],
		},
		Providers: ProviderConfig{
			OpenRouter: ProviderEntry{EnvVar: "OPENROUTER_API_KEY", DefaultModel: defaultOpenRouterModel},
			OpenAI:     ProviderEntry{EnvVar: "OPENAI_API_KEY", DefaultModel: defaultOpenAIModel},
			Anthropic:  ProviderEntry{EnvVar: "ANTHROPIC_API_KEY", DefaultModel: defaultAnthropicModel},
			Google:     ProviderEntry{EnvVar: "GOOGLE_API_KEY", DefaultModel: defaultGoogleModel},
		},
		Sandbox: SandboxConfig{
			Mode:          "workspace_write",
			ExcludeTmpdir: true,
		},
		Safety: SafetyConfig{
			TrustLevel:            DefaultTrustLevel,
			ApprovalRiskThreshold: DefaultApprovalRisk,
			RateLimitPerSecond:    DefaultRateLimitPerSec,
			RateLimitPerMinute:    DefaultRateLimitPerMin,
		},
		Context: ContextConfig{
			MaxTokens:        DefaultContextWindow,
			CompactThreshold: DefaultCompactThreshold,
		},
		Session: SessionConfig{
			DotDir:              ".vtcode",
			PTYYieldIntervalSec: DefaultYieldIntervalSecs,
		},
		CostManagement: CostManagementConfig{
			SessionBudget: DefaultSessionBudget,
			DailyBudget:   DefaultDailyBudget,
			MonthlyBudget: DefaultMonthlyBudget,
			AutoStopAt:    DefaultAutoStopBudget,
		},
	}
}

// Load reads the YAML config at path, falling back to defaults for any
// fields the file does not set. A missing file is not an error: Load
// returns Default() unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, vterrors.Wrap(err, vterrors.ErrCodeConfigLoad, "read config").WithContext("path", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, vterrors.Wrap(err, vterrors.ErrCodeConfigParse, "parse config").WithContext("path", path)
	}

	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories with
// private permissions (config may reference sandbox paths and MCP server
// commands, which are sensitive to a shared machine).
func Save(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// DefaultConfigPath returns ~/.vtcode/config.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".vtcode", "config.yaml"), nil
}

// ModelFor resolves the model string for a given provider, falling back to
// that provider's documented default when unset.
func (c *Config) ModelFor(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if c.Models.DefaultProvider == provider && c.Models.DefaultModel != "" {
		return c.Models.DefaultModel
	}
	if model, ok := providerDefaultModels[provider]; ok {
		return model
	}
	return providerDefaultModels[DefaultProvider]
}

// SessionTimestamp is a small helper kept for callers that want a single
// consistent timestamp format across config-adjacent persistence.
func SessionTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
