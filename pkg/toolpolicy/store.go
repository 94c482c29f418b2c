// Package toolpolicy implements the Tool Policy Store component: a
// per-tool and per-MCP-tool Allow/Prompt/Deny decision cache, persisted to
// a single JSON file; no database is involved. This per-tool
// cache is kept separate from the risk-scoring evaluation owned by
// pkg/safety.
package toolpolicy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	vterrors "github.com/vtcode/vtcode/pkg/errors"
)

// Decision is the cached policy for one tool.
type Decision string

const (
	Allow  Decision = "allow"
	Prompt Decision = "prompt"
	Deny   Decision = "deny"
)

// Config is the full persisted tool policy configuration for a workspace.
type Config struct {
	// Tools maps a built-in tool name to its cached decision.
	Tools map[string]Decision `json:"tools"`
	// MCPTools maps "provider/tool" to its cached decision.
	MCPTools map[string]Decision `json:"mcp_tools"`
}

func newConfig() *Config {
	return &Config{
		Tools:    make(map[string]Decision),
		MCPTools: make(map[string]Decision),
	}
}

// legacyConfig is the alternate JSON shape some older config files use:
// a flat map of tool name to decision string, with no MCP section.
// Store.Load accepts both shapes transparently.
type legacyConfig map[string]string

// Store is the in-memory, file-backed Tool Policy Store.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// Open loads the policy file at path, creating a default empty
// configuration if it does not exist. A corrupt file is backed up
// (suffixed ".corrupt", overwriting any earlier backup) and replaced with a fresh default
// rather than failing startup.
func Open(path string) (*Store, error) {
	s := &Store{path: path, cfg: newConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, vterrors.Wrap(err, vterrors.ErrCodeStorageRead, "toolpolicy: read policy file").WithContext("path", path)
	}

	if len(data) == 0 {
		return s, nil
	}

	if cfg, ok := tryParse(data); ok {
		s.cfg = cfg
		return s, nil
	}

	if err := backupCorrupt(path, data); err != nil {
		return nil, vterrors.Wrap(err, vterrors.ErrCodeStorageCorrupt, "toolpolicy: backup corrupt policy file").WithContext("path", path)
	}
	return s, nil
}

func tryParse(data []byte) (*Config, bool) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err == nil && (cfg.Tools != nil || cfg.MCPTools != nil) {
		if cfg.Tools == nil {
			cfg.Tools = make(map[string]Decision)
		}
		if cfg.MCPTools == nil {
			cfg.MCPTools = make(map[string]Decision)
		}
		return &cfg, true
	}

	var legacy legacyConfig
	if err := json.Unmarshal(data, &legacy); err == nil {
		cfg := newConfig()
		for name, decision := range legacy {
			cfg.Tools[name] = Decision(decision)
		}
		return cfg, true
	}

	return nil, false
}

func backupCorrupt(path string, data []byte) error {
	backupPath := path + ".corrupt"
	return os.WriteFile(backupPath, data, 0o600)
}

// Get returns the cached decision for a built-in tool, or Prompt if none
// is cached (prompting is always the safe default absent a cached answer).
func (s *Store) Get(tool string) Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.cfg.Tools[tool]; ok {
		return d
	}
	return Prompt
}

// GetMCP returns the cached decision for provider/tool.
func (s *Store) GetMCP(provider, tool string) Decision {
	key := provider + "/" + tool
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.cfg.MCPTools[key]; ok {
		return d
	}
	return Prompt
}

// Set stores decision for tool and persists the file.
func (s *Store) Set(tool string, decision Decision) error {
	s.mu.Lock()
	s.cfg.Tools[tool] = decision
	s.mu.Unlock()
	return s.save()
}

// SetMCP stores decision for provider/tool and persists the file.
func (s *Store) SetMCP(provider, tool string, decision Decision) error {
	key := provider + "/" + tool
	s.mu.Lock()
	s.cfg.MCPTools[key] = decision
	s.mu.Unlock()
	return s.save()
}

// RecordApproval persists a manual approval for tool as a direct Allow.
// Callers use this once an operator has accepted a gateway Prompt
// decision that should_execute_tool itself did not auto-allow.
func (s *Store) RecordApproval(tool string) error {
	return s.Set(tool, Allow)
}

// ExecutionStatus is should_execute_tool's verdict (spec.md §4.C).
type ExecutionStatus string

const (
	Allowed            ExecutionStatus = "allowed"
	Denied             ExecutionStatus = "denied"
	DeniedWithFeedback ExecutionStatus = "denied_with_feedback"
)

// ExecutionOutcome is should_execute_tool's return value: a status plus,
// for DeniedWithFeedback, the human-readable reason to surface to the
// caller.
type ExecutionOutcome struct {
	Status   ExecutionStatus
	Feedback string
}

// PermissionPromptHandler is the port should_execute_tool delegates to
// when a tool's cached policy is Prompt and the tool is not in the fixed
// auto-allow set. A nil handler defaults to Allowed, matching the
// documented backward-compatible behavior for callers that wire none.
type PermissionPromptHandler interface {
	PromptForPermission(tool string) (approved bool, feedback string)
}

// autoAllowPrefixes is the build-time-fixed set of low-risk operations
// should_execute_tool auto-allows without ever reaching a prompt handler:
// read-only builtins and a handful of known-safe inspection commands.
// Membership never changes at runtime, unlike a tool's own cached
// decision (which RecordApproval and ShouldExecuteTool's own auto-allow
// upgrade both persist).
var autoAllowPrefixes = []string{
	"read_file", "list_files", "grep_file", "unified_search",
	"git status", "git log", "git diff", "git show", "git branch",
	"cargo check", "cargo test",
}

func isAutoAllow(tool string) bool {
	lower := strings.ToLower(strings.TrimSpace(tool))
	for _, prefix := range autoAllowPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// ShouldExecuteTool implements the spec's should_execute_tool operation:
// a cached Deny maps to Denied, a cached Allow maps to Allowed, and a
// cached Prompt auto-allows (persisting the upgrade) when tool matches
// the fixed auto-allow set, otherwise delegates to handler. A nil handler
// defaults to Allowed for backward compatibility with callers that don't
// wire a prompt handler at all.
func (s *Store) ShouldExecuteTool(tool string, handler PermissionPromptHandler) ExecutionOutcome {
	switch s.Get(tool) {
	case Deny:
		return ExecutionOutcome{Status: Denied}
	case Allow:
		return ExecutionOutcome{Status: Allowed}
	}

	if isAutoAllow(tool) {
		_ = s.Set(tool, Allow)
		return ExecutionOutcome{Status: Allowed}
	}

	if handler == nil {
		return ExecutionOutcome{Status: Allowed}
	}

	approved, feedback := handler.PromptForPermission(tool)
	if approved {
		return ExecutionOutcome{Status: Allowed}
	}
	return ExecutionOutcome{Status: DeniedWithFeedback, Feedback: feedback}
}

func (s *Store) save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return vterrors.Wrap(err, vterrors.ErrCodeStorageWrite, "toolpolicy: marshal policy")
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return vterrors.Wrap(err, vterrors.ErrCodeStorageWrite, "toolpolicy: create directory").WithContext("path", dir)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return vterrors.Wrap(err, vterrors.ErrCodeStorageWrite, "toolpolicy: write temp file").WithContext("path", tmp)
	}
	return os.Rename(tmp, s.path)
}
