package mcpclient

import "testing"

func TestProviderAllowlistEmptyGlobsAllowEverything(t *testing.T) {
	var a ProviderAllowlist
	if !a.AllowsTool("anything") || !a.AllowsResource("file:///x") || !a.AllowsPrompt("p") {
		t.Fatal("expected an empty allow-list to permit everything")
	}
}

func TestProviderAllowlistMatchesGlobs(t *testing.T) {
	a := ProviderAllowlist{ToolGlobs: []string{"fs_*", "exact_tool"}}
	if !a.AllowsTool("fs_read") {
		t.Error("expected fs_read to match fs_*")
	}
	if !a.AllowsTool("exact_tool") {
		t.Error("expected exact_tool to match")
	}
	if a.AllowsTool("other_tool") {
		t.Error("expected other_tool to be denied")
	}
}

func TestAllowlistStoreUpdateReplacesEntries(t *testing.T) {
	s := newAllowlistStore()
	s.set("a", ProviderAllowlist{ToolGlobs: []string{"only_this"}})

	if !s.get("a").AllowsTool("only_this") {
		t.Fatal("expected initial allow-list to be set")
	}

	s.replaceAll(map[string]ProviderAllowlist{"a": {ToolGlobs: []string{"new_tool"}}})

	if s.get("a").AllowsTool("only_this") {
		t.Error("expected old allow-list entry to be gone after replaceAll")
	}
	if !s.get("a").AllowsTool("new_tool") {
		t.Error("expected new allow-list entry to take effect")
	}
}
