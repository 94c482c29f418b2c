package mcpclient

import (
	"path/filepath"
	"sync"
)

// ProviderAllowlist is the per-provider allow-list enforced by the provider
// wrapper, per §4.J: tool globs, resource globs, prompt globs, the logging
// events a provider may emit, and the configuration keys it may read.
type ProviderAllowlist struct {
	ToolGlobs     []string
	ResourceGlobs []string
	PromptGlobs   []string
	LogEvents     []string
	ConfigKeys    []string
}

// allows reports whether name matches any of globs. An empty glob list
// allows everything, matching the "no restriction configured" default.
func allows(globs []string, name string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if ok, err := filepath.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}

// AllowsTool reports whether a is permitted to expose toolName.
func (a ProviderAllowlist) AllowsTool(toolName string) bool { return allows(a.ToolGlobs, toolName) }

// AllowsResource reports whether a is permitted to expose a resource URI.
func (a ProviderAllowlist) AllowsResource(uri string) bool { return allows(a.ResourceGlobs, uri) }

// AllowsPrompt reports whether a is permitted to expose a prompt name.
func (a ProviderAllowlist) AllowsPrompt(name string) bool { return allows(a.PromptGlobs, name) }

// AllowsLogEvent reports whether a provider may emit a named logging event.
func (a ProviderAllowlist) AllowsLogEvent(event string) bool { return allows(a.LogEvents, event) }

// AllowsConfigKey reports whether a provider may read a named configuration
// key (e.g. when resolving templated args against host config).
func (a ProviderAllowlist) AllowsConfigKey(key string) bool { return allows(a.ConfigKeys, key) }

// allowlistStore is the hot-swappable table of per-provider allow-lists.
// update_allowlist replaces the table and invalidates the tool index cache
// that was built under the old table, per §4.J.
type allowlistStore struct {
	mu      sync.RWMutex
	entries map[string]ProviderAllowlist
}

func newAllowlistStore() *allowlistStore {
	return &allowlistStore{entries: make(map[string]ProviderAllowlist)}
}

func (s *allowlistStore) set(provider string, a ProviderAllowlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[provider] = a
}

func (s *allowlistStore) get(provider string) ProviderAllowlist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[provider]
}

func (s *allowlistStore) replaceAll(entries map[string]ProviderAllowlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
}
