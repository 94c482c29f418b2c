package mcpclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Manager manages a set of MCP provider connections: it opens transports,
// negotiates capabilities, maintains a tool_provider_index for routing calls,
// and enforces the per-provider allow-list, per §4.J.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*Client
	configs map[string]Config

	allowlists *allowlistStore

	// toolIndex routes a tool name to the provider that last advertised it.
	// Rebuilt whenever tools are (re)listed; invalidated by update_allowlist.
	toolIndex map[string]string

	elicit ElicitationHandler
}

// NewManager creates a new MCP manager.
func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		configs:    make(map[string]Config),
		allowlists: newAllowlistStore(),
		toolIndex:  make(map[string]string),
	}
}

// SetElicitationHandler installs the handler used to satisfy
// provider-initiated prompts on every client connected from here on, and on
// every client already connected.
func (m *Manager) SetElicitationHandler(h ElicitationHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elicit = h
	for _, c := range m.clients {
		c.SetElicitationHandler(h)
	}
}

// AddServer adds a provider configuration.
func (m *Manager) AddServer(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.Name] = cfg
}

// SetAllowlist installs the allow-list for a single provider.
func (m *Manager) SetAllowlist(provider string, allow ProviderAllowlist) {
	m.allowlists.set(provider, allow)
}

// UpdateAllowlist hot-swaps the entire allow-list table and invalidates the
// tool_provider_index, so the next lookup is re-filtered under the new
// table instead of serving stale routing decisions, per §4.J.
func (m *Manager) UpdateAllowlist(entries map[string]ProviderAllowlist) {
	m.allowlists.replaceAll(entries)
	m.mu.Lock()
	m.toolIndex = make(map[string]string)
	m.mu.Unlock()
	m.rebuildToolIndex()
}

// Connect connects to all configured providers.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	var errs []string
	for name, cfg := range m.configs {
		if _, exists := m.clients[name]; exists {
			continue
		}
		client, err := NewClient(cfg)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if m.elicit != nil {
			client.SetElicitationHandler(m.elicit)
		}
		if err := client.Initialize(ctx); err != nil {
			client.Close()
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if _, err := client.ListTools(ctx); err != nil {
			// Non-fatal: some providers expose no tools.
		}
		m.clients[name] = client
	}
	m.mu.Unlock()

	m.rebuildToolIndex()

	if len(errs) > 0 {
		return fmt.Errorf("failed to connect to some providers: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ConnectServer connects to a specific provider by name.
func (m *Manager) ConnectServer(ctx context.Context, name string) error {
	m.mu.Lock()
	cfg, ok := m.configs[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("provider not configured: %s", name)
	}
	if _, exists := m.clients[name]; exists {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	client, err := NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	m.mu.Lock()
	if m.elicit != nil {
		client.SetElicitationHandler(m.elicit)
	}
	m.mu.Unlock()

	if err := client.Initialize(ctx); err != nil {
		client.Close()
		return fmt.Errorf("failed to initialize: %w", err)
	}
	if _, err := client.ListTools(ctx); err != nil {
		// Non-fatal.
	}

	m.mu.Lock()
	m.clients[name] = client
	m.mu.Unlock()

	m.rebuildToolIndex()
	return nil
}

// DisconnectServer disconnects from a specific provider.
func (m *Manager) DisconnectServer(name string) error {
	m.mu.Lock()
	client, ok := m.clients[name]
	if ok {
		delete(m.clients, name)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	m.rebuildToolIndex()
	return client.Close()
}

// GetClient returns a client by provider name.
func (m *Manager) GetClient(name string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, ok := m.clients[name]
	return client, ok
}

// ListServers returns all configured provider names.
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	return names
}

// ListConnectedServers returns all connected provider names.
func (m *Manager) ListConnectedServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	return names
}

// ToolWithServer pairs a tool definition with the provider exposing it.
type ToolWithServer struct {
	Server string
	Tool   ToolDefinition
}

// AllTools returns the allow-listed tools from all connected providers.
func (m *Manager) AllTools() []ToolWithServer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ToolWithServer
	for serverName, client := range m.clients {
		allow := m.allowlists.get(serverName)
		for _, tool := range client.Tools() {
			if !allow.AllowsTool(tool.Name) {
				continue
			}
			out = append(out, ToolWithServer{Server: serverName, Tool: tool})
		}
	}
	return out
}

// rebuildToolIndex recomputes the tool_provider_index from the currently
// connected providers' allow-listed tools. When two providers advertise the
// same tool name, the index keeps whichever one map iteration visits last;
// which provider that is, is not defined.
func (m *Manager) rebuildToolIndex() {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := make(map[string]string)
	for serverName, client := range m.clients {
		allow := m.allowlists.get(serverName)
		for _, tool := range client.Tools() {
			if !allow.AllowsTool(tool.Name) {
				continue
			}
			index[tool.Name] = serverName
		}
	}
	m.toolIndex = index
}

// CallTool calls a tool on the named provider, after confirming the
// allow-list still permits it.
func (m *Manager) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (*ToolCallResult, error) {
	m.mu.RLock()
	client, ok := m.clients[serverName]
	allow := m.allowlists.get(serverName)
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("provider not connected: %s", serverName)
	}
	if !allow.AllowsTool(toolName) {
		return nil, fmt.Errorf("tool not allow-listed: %s on %s", toolName, serverName)
	}
	return client.CallTool(ctx, toolName, args)
}

// FindTool routes a call by tool name: it first checks the tool_provider_index
// built from the last refresh, then falls back to probing every connected
// provider in turn on a miss, per §4.J.
func (m *Manager) FindTool(toolName string) (serverName string, tool *ToolDefinition, found bool) {
	m.mu.RLock()
	if srv, ok := m.toolIndex[toolName]; ok {
		if client, ok := m.clients[srv]; ok {
			for _, t := range client.Tools() {
				if t.Name == toolName {
					t := t
					m.mu.RUnlock()
					return srv, &t, true
				}
			}
		}
	}
	srvNames := make([]string, 0, len(m.clients))
	for name := range m.clients {
		srvNames = append(srvNames, name)
	}
	m.mu.RUnlock()

	for _, srvName := range srvNames {
		m.mu.RLock()
		client, ok := m.clients[srvName]
		allow := m.allowlists.get(srvName)
		m.mu.RUnlock()
		if !ok {
			continue
		}
		for _, t := range client.Tools() {
			if t.Name == toolName && allow.AllowsTool(t.Name) {
				t := t
				return srvName, &t, true
			}
		}
	}
	return "", nil, false
}

// ServerStatus represents the current status of an MCP provider.
type ServerStatus struct {
	Name          string
	Command       string
	Connected     bool
	Version       string
	Protocol      string
	ToolCount     int
	ResourceCount int
}

// ServerStatus returns the status of all configured providers.
func (m *Manager) ServerStatus() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var statuses []ServerStatus
	for name, cfg := range m.configs {
		status := ServerStatus{Name: name, Command: cfg.Command}
		if client, ok := m.clients[name]; ok {
			status.Connected = true
			if info := client.ServerInfo(); info != nil {
				status.Version = info.Version
				status.Protocol = info.ProtocolVer
			}
			allow := m.allowlists.get(name)
			for _, t := range client.Tools() {
				if allow.AllowsTool(t.Name) {
					status.ToolCount++
				}
			}
			for _, r := range client.Resources() {
				if allow.AllowsResource(r.URI) {
					status.ResourceCount++
				}
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Refresh reconnects tool/resource/prompt lists for all connected providers
// and rebuilds the tool_provider_index from the refreshed state.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		m.mu.RLock()
		client, ok := m.clients[name]
		m.mu.RUnlock()
		if !ok {
			continue
		}
		if _, err := client.ListTools(ctx); err != nil {
			// Log but continue.
		}
		if _, err := client.ListResources(ctx); err != nil {
			// Not every provider exposes resources.
		}
		if _, err := client.ListPrompts(ctx); err != nil {
			// Not every provider exposes prompts.
		}
	}

	m.rebuildToolIndex()
	return nil
}

// Close disconnects from all providers.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []string
	for name, client := range m.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	m.clients = make(map[string]*Client)
	m.toolIndex = make(map[string]string)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing providers: %s", strings.Join(errs, "; "))
	}
	return nil
}

// HealthCheck checks the health of all connected providers by probing
// tools/list with a bounded timeout.
func (m *Manager) HealthCheck(ctx context.Context, timeout time.Duration) map[string]bool {
	m.mu.RLock()
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	m.mu.RUnlock()

	results := make(map[string]bool)
	for _, name := range names {
		m.mu.RLock()
		client, ok := m.clients[name]
		m.mu.RUnlock()
		if !ok {
			results[name] = false
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		_, err := client.ListTools(checkCtx)
		cancel()
		results[name] = err == nil
	}
	return results
}
