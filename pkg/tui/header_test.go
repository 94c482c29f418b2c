package tui

import (
	"strings"
	"testing"
)

func TestRenderHeaderIncludesCoreFields(t *testing.T) {
	info := HeaderInfo{
		Provider:       "anthropic",
		Model:          "claude",
		ReasoningLevel: "medium",
		Mode:           "agent",
		TrustLevel:     "trusted",
		ToolCount:      7,
	}
	lines := RenderHeader(info, 200)
	if len(lines) != 1 {
		t.Fatalf("expected a single line with no highlights, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "anthropic/claude") {
		t.Errorf("expected provider/model in header, got %q", lines[0])
	}
	if !strings.Contains(lines[0], "tools:7") {
		t.Errorf("expected tool count in header, got %q", lines[0])
	}
}

func TestRenderHeaderMissingFieldsRenderAsDash(t *testing.T) {
	lines := RenderHeader(HeaderInfo{Provider: "x", Model: "y"}, 200)
	if !strings.Contains(lines[0], "reasoning:-") {
		t.Errorf("expected missing reasoning level to render as '-', got %q", lines[0])
	}
}

func TestRenderHeaderCollapsesLongHighlights(t *testing.T) {
	info := HeaderInfo{
		Provider:   "x",
		Model:      "y",
		Highlights: []string{"alpha-server", "beta-server", "gamma-server", "delta-server", "epsilon-server"},
	}
	lines := RenderHeader(info, 200)
	if len(lines) != 2 {
		t.Fatalf("expected a second highlights line, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "more)") {
		t.Errorf("expected the highlight line to collapse with '(+N more)', got %q", lines[1])
	}
}

func TestRenderHeaderShortHighlightsUncollapsed(t *testing.T) {
	info := HeaderInfo{Provider: "x", Model: "y", Highlights: []string{"one", "two"}}
	lines := RenderHeader(info, 200)
	if lines[1] != "one, two" {
		t.Errorf("expected uncollapsed 'one, two', got %q", lines[1])
	}
}

func TestRenderFollowupFooterEmptyWhenNoneQueued(t *testing.T) {
	if got := RenderFollowupFooter(0); got != "" {
		t.Errorf("expected empty footer, got %q", got)
	}
	if got := RenderFollowupFooter(3); got != "Follow-ups (3)" {
		t.Errorf("expected 'Follow-ups (3)', got %q", got)
	}
}
