package mcpclient

import (
	"context"
	"testing"
)

func fakeConnectedManager() (*Manager, *Client) {
	m := NewManager()
	client := &Client{
		serverID: "fs",
		pending:  make(map[int64]chan *Message),
		tools: []ToolDefinition{
			{Name: "read_file", Description: "read"},
			{Name: "write_file", Description: "write"},
		},
	}
	m.configs["fs"] = Config{Name: "fs", Command: "fs-server"}
	m.clients["fs"] = client
	return m, client
}

func TestManagerAllToolsFiltersByAllowlist(t *testing.T) {
	m, _ := fakeConnectedManager()
	m.SetAllowlist("fs", ProviderAllowlist{ToolGlobs: []string{"read_*"}})

	all := m.AllTools()
	if len(all) != 1 || all[0].Tool.Name != "read_file" {
		t.Fatalf("expected only read_file to survive the allow-list, got %+v", all)
	}
}

func TestManagerFindToolUsesProviderIndex(t *testing.T) {
	m, _ := fakeConnectedManager()
	m.rebuildToolIndex()

	server, tool, found := m.FindTool("write_file")
	if !found || server != "fs" || tool.Name != "write_file" {
		t.Fatalf("expected write_file routed to fs, got server=%q found=%v", server, found)
	}
}

func TestManagerFindToolDeniedByAllowlistIsNotFound(t *testing.T) {
	m, _ := fakeConnectedManager()
	m.SetAllowlist("fs", ProviderAllowlist{ToolGlobs: []string{"read_*"}})
	m.rebuildToolIndex()

	if _, _, found := m.FindTool("write_file"); found {
		t.Error("expected write_file to be denied by the allow-list")
	}
	if _, _, found := m.FindTool("read_file"); !found {
		t.Error("expected read_file to still be routable")
	}
}

func TestManagerCallToolRejectsDisallowedTool(t *testing.T) {
	m, _ := fakeConnectedManager()
	m.SetAllowlist("fs", ProviderAllowlist{ToolGlobs: []string{"read_*"}})

	_, err := m.CallTool(context.Background(), "fs", "write_file", nil)
	if err == nil {
		t.Fatal("expected an error calling a tool outside the allow-list")
	}
}

func TestManagerUpdateAllowlistInvalidatesToolIndex(t *testing.T) {
	m, _ := fakeConnectedManager()
	m.rebuildToolIndex()

	if _, _, found := m.FindTool("write_file"); !found {
		t.Fatal("expected write_file to be routable before the allow-list update")
	}

	m.UpdateAllowlist(map[string]ProviderAllowlist{"fs": {ToolGlobs: []string{"read_*"}}})

	if _, _, found := m.FindTool("write_file"); found {
		t.Error("expected write_file to be unroutable after update_allowlist narrowed its provider's glob")
	}
}

func TestManagerServerStatusReportsConfiguredAndConnected(t *testing.T) {
	m, _ := fakeConnectedManager()
	m.AddServer(Config{Name: "unreachable", Command: "nope"})

	statuses := m.ServerStatus()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	var sawConnected, sawDisconnected bool
	for _, s := range statuses {
		switch s.Name {
		case "fs":
			sawConnected = s.Connected && s.ToolCount == 2
		case "unreachable":
			sawDisconnected = !s.Connected
		}
	}
	if !sawConnected {
		t.Error("expected fs to report connected with its tool count")
	}
	if !sawDisconnected {
		t.Error("expected unreachable to report disconnected")
	}
}
